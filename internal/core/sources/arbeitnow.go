package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

const arbeitnowEndpoint = "https://www.arbeitnow.com/api/job-board-api"

type Arbeitnow struct {
	fetcher  *Fetcher
	endpoint string
}

func NewArbeitnow(f *Fetcher, endpoint string) *Arbeitnow {
	if endpoint == "" {
		endpoint = arbeitnowEndpoint
	}
	return &Arbeitnow{fetcher: f, endpoint: endpoint}
}

func (a *Arbeitnow) Name() string { return ArbeitnowName }

type arbeitnowPayload struct {
	Data []struct {
		Slug        string   `json:"slug"`
		CompanyName string   `json:"company_name"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Remote      bool     `json:"remote"`
		URL         string   `json:"url"`
		Tags        []string `json:"tags"`
		JobTypes    []string `json:"job_types"`
		Location    string   `json:"location"`
		CreatedAt   flexInt  `json:"created_at"`
	} `json:"data"`
}

func (a *Arbeitnow) Fetch(ctx context.Context) ([]RawJob, error) {
	if a.fetcher == nil {
		return nil, errors.New("arbeitnow: nil fetcher")
	}
	log := logger.FromContext(ctx).WithField(logger.FieldSource, a.Name())

	var payload arbeitnowPayload
	if err := a.fetcher.GetJSON(ctx, a.endpoint, &payload); err != nil {
		log.WithError(err).Warn("arbeitnow fetch failed; returning no jobs")
		return nil, nil
	}

	out := make([]RawJob, 0, len(payload.Data))
	for _, j := range payload.Data {
		if j.Slug == "" || strings.TrimSpace(j.Title) == "" {
			continue
		}
		out = append(out, RawJob{
			SourceID:    j.Slug,
			Title:       strings.TrimSpace(j.Title),
			Company:     strings.TrimSpace(j.CompanyName),
			Description: htmlToText(j.Description),
			Location:    strings.TrimSpace(j.Location),
			URL:         j.URL,
			JobType:     strings.Join(j.JobTypes, ", "),
			Tags:        j.Tags,
			IsRemote:    j.Remote,
			PostedAt:    unixTime(int64(j.CreatedAt)),
		})
	}
	return out, nil
}
