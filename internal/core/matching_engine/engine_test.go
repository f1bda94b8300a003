package matching_engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

var now = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

type memStore struct {
	resume  *models.Resume
	jobs    []models.JobPosting
	matches []models.Match
	inserts int
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (m *memStore) LatestParsedResume(context.Context, string) (*models.Resume, error) {
	if m.resume == nil {
		return nil, core.ErrNotFound
	}
	r := *m.resume
	return &r, nil
}

// NearestJobs deliberately returns candidates in reverse id order on ties
// so the engine's own ordering is exercised.
func (m *memStore) NearestJobs(_ context.Context, vec []float32, since time.Time, limit int) ([]models.ScoredJob, error) {
	var out []models.ScoredJob
	for _, j := range m.jobs {
		if j.Embedding == nil || j.CreatedAt.Before(since) {
			continue
		}
		out = append(out, models.ScoredJob{Job: j, Distance: cosineDistance(vec, j.Embedding)})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].Job.ID > out[b].Job.ID
	})
	return out, nil
}

func (m *memStore) MatchExists(_ context.Context, userID, jobID string) (bool, error) {
	for _, x := range m.matches {
		if x.UserID == userID && x.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertMatches(_ context.Context, ms []models.Match) (int, error) {
	m.inserts++
	m.matches = append(m.matches, ms...)
	return len(ms), nil
}

func (m *memStore) LatestMatchBatch(_ context.Context, userID string, offset, limit int) ([]models.Match, int, error) {
	var batch []models.Match
	for _, x := range m.matches {
		if x.UserID == userID {
			batch = append(batch, x)
		}
	}
	total := len(batch)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return batch[offset:end], total, nil
}

func (m *memStore) CountMatches(_ context.Context, userID string) (int, error) {
	n := 0
	for _, x := range m.matches {
		if x.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkMatchViewed(_ context.Context, userID, matchID string) error {
	for i := range m.matches {
		if m.matches[i].ID == matchID && m.matches[i].UserID == userID {
			m.matches[i].Viewed = true
			return nil
		}
	}
	return core.ErrNotFound
}

type stubExplainer struct {
	failFor map[string]bool
	calls   int
}

func (s *stubExplainer) ExplainMatch(_ context.Context, _, jobDescription string) (string, error) {
	s.calls++
	if s.failFor[jobDescription] {
		return "", core.ErrNoAnswer
	}
	return "fits: " + jobDescription, nil
}

func job(id string, emb []float32, age time.Duration) models.JobPosting {
	return models.JobPosting{ID: id, Title: id, Description: id, Embedding: emb, CreatedAt: now.Add(-age)}
}

func newEngine(store *memStore, ex *stubExplainer) *Engine {
	e := NewEngine(store, ex)
	e.now = func() time.Time { return now }
	return e
}

func TestMatchForUserPicksNearestJob(t *testing.T) {
	store := &memStore{
		resume: &models.Resume{ID: "r1", ExtractedText: "go dev", Embedding: []float32{1, 0}},
		jobs: []models.JobPosting{
			job("j1", []float32{1, 0}, time.Hour),
			job("j2", []float32{0, 1}, time.Hour),
		},
	}
	n, err := newEngine(store, &stubExplainer{}).MatchForUser(context.Background(), "u1", 1, 24*time.Hour)
	if err != nil {
		t.Fatalf("MatchForUser: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored %d matches, want 1", n)
	}
	want := []models.Match{{UserID: "u1", ResumeID: "r1", JobID: "j1", SimilarityScore: 1.0, Rationale: "fits: j1"}}
	if diff := cmp.Diff(want, store.matches, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
}

func TestMatchForUserIsIdempotent(t *testing.T) {
	store := &memStore{
		resume: &models.Resume{ID: "r1", Embedding: []float32{1, 0}},
		jobs:   []models.JobPosting{job("j1", []float32{1, 0}, time.Hour)},
	}
	e := newEngine(store, &stubExplainer{})

	if n, err := e.MatchForUser(context.Background(), "u1", 5, 24*time.Hour); err != nil || n != 1 {
		t.Fatalf("first run = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := e.MatchForUser(context.Background(), "u1", 5, 24*time.Hour); err != nil || n != 0 {
		t.Fatalf("second run = (%d, %v), want (0, nil)", n, err)
	}
	if store.inserts != 1 {
		t.Errorf("InsertMatches called %d times, want 1", store.inserts)
	}
}

func TestMatchForUserTieBreaksByJobID(t *testing.T) {
	store := &memStore{
		resume: &models.Resume{ID: "r1", Embedding: []float32{1, 0}},
		jobs: []models.JobPosting{
			job("b", []float32{2, 0}, time.Hour),
			job("a", []float32{1, 0}, time.Hour),
			job("c", []float32{0, 1}, time.Hour),
		},
	}
	if _, err := newEngine(store, &stubExplainer{}).MatchForUser(context.Background(), "u1", 2, 24*time.Hour); err != nil {
		t.Fatalf("MatchForUser: %v", err)
	}
	var got []string
	for _, m := range store.matches {
		got = append(got, m.JobID)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("match order (-want +got):\n%s", diff)
	}
}

func TestMatchForUserSkipsFailedRationale(t *testing.T) {
	store := &memStore{
		resume: &models.Resume{ID: "r1", Embedding: []float32{1, 0}},
		jobs: []models.JobPosting{
			job("j1", []float32{1, 0}, time.Hour),
			job("j2", []float32{1, 0.1}, time.Hour),
		},
	}
	ex := &stubExplainer{failFor: map[string]bool{"j1": true}}
	n, err := newEngine(store, ex).MatchForUser(context.Background(), "u1", 2, 24*time.Hour)
	if err != nil {
		t.Fatalf("MatchForUser: %v", err)
	}
	if n != 1 || store.matches[0].JobID != "j2" {
		t.Errorf("got %d matches %+v, want only j2", n, store.matches)
	}
}

func TestMatchForUserRespectsLookback(t *testing.T) {
	store := &memStore{
		resume: &models.Resume{ID: "r1", Embedding: []float32{1, 0}},
		jobs:   []models.JobPosting{job("old", []float32{1, 0}, 48*time.Hour)},
	}
	n, err := newEngine(store, &stubExplainer{}).MatchForUser(context.Background(), "u1", 1, 24*time.Hour)
	if err != nil || n != 0 {
		t.Errorf("got (%d, %v), want (0, nil)", n, err)
	}
}

func TestMatchForUserWithoutResume(t *testing.T) {
	ex := &stubExplainer{}
	n, err := newEngine(&memStore{}, ex).MatchForUser(context.Background(), "u1", 1, 24*time.Hour)
	if err != nil || n != 0 {
		t.Errorf("got (%d, %v), want (0, nil)", n, err)
	}
	if ex.calls != 0 {
		t.Error("explainer must not be called without a resume")
	}
}

func TestMatchForUserRejectsBadTopK(t *testing.T) {
	_, err := newEngine(&memStore{}, &stubExplainer{}).MatchForUser(context.Background(), "u1", 0, time.Hour)
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestMatchesForUser(t *testing.T) {
	store := &memStore{matches: []models.Match{
		{ID: "m1", UserID: "u1", JobID: "j1"},
		{ID: "m2", UserID: "u1", JobID: "j2"},
		{ID: "m3", UserID: "u2", JobID: "j1"},
	}}
	e := newEngine(store, &stubExplainer{})

	page, err := e.MatchesForUser(context.Background(), "u1", 1, 0)
	if err != nil {
		t.Fatalf("MatchesForUser: %v", err)
	}
	if page.Limit != DefaultPageSize || page.Offset != 1 || page.BatchTotal != 2 || page.AllTime != 2 {
		t.Errorf("unexpected page metadata: %+v", page)
	}
	if len(page.Matches) != 1 || page.Matches[0].ID != "m2" {
		t.Errorf("unexpected page contents: %+v", page.Matches)
	}

	empty, err := e.MatchesForUser(context.Background(), "nobody", 0, 10)
	if err != nil {
		t.Fatalf("MatchesForUser: %v", err)
	}
	if empty.Matches == nil || len(empty.Matches) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", empty.Matches)
	}

	for _, bad := range [][2]int{{-1, 10}, {0, -1}, {0, MaxPageSize + 1}} {
		if _, err := e.MatchesForUser(context.Background(), "u1", bad[0], bad[1]); !errors.Is(err, core.ErrValidation) {
			t.Errorf("offset=%d limit=%d: err = %v, want ErrValidation", bad[0], bad[1], err)
		}
	}
}

func TestMarkViewed(t *testing.T) {
	store := &memStore{matches: []models.Match{{ID: "m1", UserID: "u1"}}}
	e := newEngine(store, &stubExplainer{})

	if err := e.MarkViewed(context.Background(), "u1", "m1"); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if !store.matches[0].Viewed {
		t.Error("match not marked viewed")
	}
	if err := e.MarkViewed(context.Background(), "u2", "m1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
