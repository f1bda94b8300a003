// Package sources fetches postings from job boards and normalizes them.
//
// Adapters absorb transport and payload errors: they log and return an empty
// result so one unreachable board never stops an ingestion run.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/markdave123-py/jobmatch/internal/models"
)

// Adapter is one job board.
type Adapter interface {
	// Name is the stable source identifier stored with every posting.
	Name() string
	Fetch(ctx context.Context) ([]RawJob, error)
}

// RawJob is a posting as normalized by an adapter, before it is stored.
type RawJob struct {
	SourceID       string
	Title          string
	Company        string
	Description    string
	Location       string
	URL            string
	JobType        string
	Tags           []string
	IsRemote       bool
	SalaryMin      *int
	SalaryMax      *int
	SalaryCurrency string
	Extra          map[string]any
	PostedAt       *time.Time
}

// ToPosting converts r into a storable posting for source.
func (r RawJob) ToPosting(source string) models.JobPosting {
	var extra json.RawMessage
	if len(r.Extra) > 0 {
		if b, err := json.Marshal(r.Extra); err == nil {
			extra = b
		}
	}
	return models.JobPosting{
		Source:         source,
		SourceID:       r.SourceID,
		Title:          r.Title,
		Company:        r.Company,
		Description:    r.Description,
		Tags:           cleanTags(r.Tags),
		Location:       r.Location,
		URL:            r.URL,
		JobType:        r.JobType,
		IsRemote:       r.IsRemote,
		SalaryMin:      r.SalaryMin,
		SalaryMax:      r.SalaryMax,
		SalaryCurrency: r.SalaryCurrency,
		Extra:          extra,
		PostedAt:       r.PostedAt,
	}
}

// Registered adapter names, in run order.
const (
	RemoteOKName  = "remoteok"
	ArbeitnowName = "arbeitnow"
	HNAlgoliaName = "hn_algolia"
)

// Registry returns the enabled adapters in their fixed order.
func Registry(f *Fetcher, enabled []string) ([]Adapter, error) {
	all := []Adapter{
		NewRemoteOK(f, ""),
		NewArbeitnow(f, ""),
		NewHNAlgolia(f, ""),
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		if name = strings.TrimSpace(name); name != "" {
			want[name] = true
		}
	}

	var out []Adapter
	for _, a := range all {
		if want[a.Name()] {
			out = append(out, a)
			delete(want, a.Name())
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for name := range want {
			unknown = append(unknown, name)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown job sources %v", unknown)
	}
	return out, nil
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func cleanTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// flexString accepts a JSON string or number. Boards are not consistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else decodes as 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	n := json.Number(s)
	if v, err := n.Int64(); err == nil {
		*f = flexInt(v)
		return nil
	}
	if v, err := n.Float64(); err == nil {
		*f = flexInt(int64(v))
	}
	return nil
}
