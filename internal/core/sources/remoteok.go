package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

const remoteOKEndpoint = "https://remoteok.com/api"

// RemoteOK reads the public RemoteOK feed. The first array element is a legal
// notice, not a job.
type RemoteOK struct {
	fetcher  *Fetcher
	endpoint string
}

func NewRemoteOK(f *Fetcher, endpoint string) *RemoteOK {
	if endpoint == "" {
		endpoint = remoteOKEndpoint
	}
	return &RemoteOK{fetcher: f, endpoint: endpoint}
}

func (r *RemoteOK) Name() string { return RemoteOKName }

type remoteOKJob struct {
	ID          flexString `json:"id"`
	Slug        string     `json:"slug"`
	Epoch       flexInt    `json:"epoch"`
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	URL         string     `json:"url"`
	ApplyURL    string     `json:"apply_url"`
	SalaryMin   flexInt    `json:"salary_min"`
	SalaryMax   flexInt    `json:"salary_max"`
}

func (r *RemoteOK) Fetch(ctx context.Context) ([]RawJob, error) {
	if r.fetcher == nil {
		return nil, errors.New("remoteok: nil fetcher")
	}
	log := logger.FromContext(ctx).WithField(logger.FieldSource, r.Name())

	var payload []remoteOKJob
	if err := r.fetcher.GetJSON(ctx, r.endpoint, &payload); err != nil {
		log.WithError(err).Warn("remoteok fetch failed; returning no jobs")
		return nil, nil
	}
	if len(payload) > 0 {
		payload = payload[1:]
	}

	out := make([]RawJob, 0, len(payload))
	for _, j := range payload {
		id := strings.TrimSpace(string(j.ID))
		if id == "" || strings.TrimSpace(j.Position) == "" {
			continue
		}
		raw := RawJob{
			SourceID:    id,
			Title:       strings.TrimSpace(j.Position),
			Company:     strings.TrimSpace(j.Company),
			Description: htmlToText(j.Description),
			Location:    strings.TrimSpace(j.Location),
			URL:         j.URL,
			Tags:        j.Tags,
			IsRemote:    true,
			PostedAt:    unixTime(int64(j.Epoch)),
			Extra:       map[string]any{"slug": j.Slug, "apply_url": j.ApplyURL},
		}
		if j.SalaryMin > 0 || j.SalaryMax > 0 {
			lo, hi := int(j.SalaryMin), int(j.SalaryMax)
			raw.SalaryMin, raw.SalaryMax = &lo, &hi
			raw.SalaryCurrency = "USD"
		}
		out = append(out, raw)
	}
	return out, nil
}
