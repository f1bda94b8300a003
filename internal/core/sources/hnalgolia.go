package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

const hnAlgoliaEndpoint = "http://hn.algolia.com/api/v1/search_by_date?tags=job"

// HNAlgolia reads Hacker News job stories through the Algolia search API.
type HNAlgolia struct {
	fetcher  *Fetcher
	endpoint string
}

func NewHNAlgolia(f *Fetcher, endpoint string) *HNAlgolia {
	if endpoint == "" {
		endpoint = hnAlgoliaEndpoint
	}
	return &HNAlgolia{fetcher: f, endpoint: endpoint}
}

func (h *HNAlgolia) Name() string { return HNAlgoliaName }

type hnPayload struct {
	Hits []struct {
		ObjectID   string   `json:"objectID"`
		Title      string   `json:"title"`
		Author     string   `json:"author"`
		StoryText  string   `json:"story_text"`
		URL        string   `json:"url"`
		Tags       []string `json:"_tags"`
		CreatedAtI flexInt  `json:"created_at_i"`
	} `json:"hits"`
}

func (h *HNAlgolia) Fetch(ctx context.Context) ([]RawJob, error) {
	if h.fetcher == nil {
		return nil, errors.New("hn_algolia: nil fetcher")
	}
	log := logger.FromContext(ctx).WithField(logger.FieldSource, h.Name())

	var payload hnPayload
	if err := h.fetcher.GetJSON(ctx, h.endpoint, &payload); err != nil {
		log.WithError(err).Warn("hn algolia fetch failed; returning no jobs")
		return nil, nil
	}

	out := make([]RawJob, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		title := strings.TrimSpace(hit.Title)
		if hit.ObjectID == "" || title == "" {
			continue
		}
		desc := htmlToText(hit.StoryText)
		if desc == "" {
			desc = title
		}
		link := hit.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}
		var tags []string
		for _, t := range hit.Tags {
			// author_<name> and story_<id> are search facets, not topics
			if strings.HasPrefix(t, "author_") || strings.HasPrefix(t, "story_") {
				continue
			}
			tags = append(tags, t)
		}
		out = append(out, RawJob{
			SourceID:    hit.ObjectID,
			Title:       title,
			Company:     hit.Author,
			Description: desc,
			URL:         link,
			Tags:        tags,
			PostedAt:    unixTime(int64(hit.CreatedAtI)),
		})
	}
	return out, nil
}
