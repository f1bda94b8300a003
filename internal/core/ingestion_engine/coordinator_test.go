package ingestion_engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/core/sources"
	"github.com/markdave123-py/jobmatch/internal/models"
)

type fakeAdapter struct {
	name string
	jobs []sources.RawJob
	err  error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(context.Context) ([]sources.RawJob, error) { return f.jobs, f.err }

type memJobs struct {
	mu        sync.Mutex
	rows      map[string]models.JobPosting
	insertErr error
	inserts   int
}

func newMemJobs(existing ...models.JobPosting) *memJobs {
	m := &memJobs{rows: map[string]models.JobPosting{}}
	for _, j := range existing {
		m.rows[j.Source+"/"+j.SourceID] = j
	}
	return m
}

func (m *memJobs) JobExists(_ context.Context, source, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[source+"/"+sourceID]
	return ok, nil
}

func (m *memJobs) InsertJobPostings(_ context.Context, jobs []models.JobPosting) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	n := 0
	for _, j := range jobs {
		k := j.Source + "/" + j.SourceID
		if _, ok := m.rows[k]; ok {
			continue
		}
		j.ID = k
		m.rows[k] = j
		n++
	}
	return n, nil
}

func (m *memJobs) ListJobsWithoutEmbedding(_ context.Context, limit int) ([]models.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobPosting
	for _, j := range m.rows {
		if j.Embedding == nil {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) SetJobEmbedding(_ context.Context, jobID string, emb []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[jobID]
	if !ok {
		return core.ErrNotFound
	}
	j.Embedding = emb
	m.rows[jobID] = j
	return nil
}

func (m *memJobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for k := range m.rows {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeEmbedder) EmbedJob(_ context.Context, job *models.JobPosting) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Embedding != nil {
		return false, nil
	}
	f.calls++
	if f.fail[job.SourceID] {
		return false, core.ErrQuotaExceeded
	}
	job.Embedding = []float32{1, 0}
	return true, nil
}

func raw(ids ...string) []sources.RawJob {
	out := make([]sources.RawJob, len(ids))
	for i, id := range ids {
		out[i] = sources.RawJob{SourceID: id, Title: "Job " + id, Description: "desc"}
	}
	return out
}

func TestRunStoresOnlyUnseenPostings(t *testing.T) {
	store := newMemJobs(models.JobPosting{ID: "remoteok/42", Source: "remoteok", SourceID: "42"})
	emb := &fakeEmbedder{}
	c := NewCoordinator([]sources.Adapter{&fakeAdapter{name: "remoteok", jobs: raw("42", "43")}}, store, emb)

	n, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("stored %d, want 1", n)
	}
	if emb.calls != 1 {
		t.Errorf("embedded %d postings, want 1", emb.calls)
	}
	if diff := cmp.Diff([]string{"remoteok/42", "remoteok/43"}, store.keys()); diff != "" {
		t.Errorf("stored keys (-want +got):\n%s", diff)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemJobs()
	c := NewCoordinator([]sources.Adapter{&fakeAdapter{name: "arbeitnow", jobs: raw("a", "b", "a")}}, store, &fakeEmbedder{})

	first, err := c.Run(context.Background())
	if err != nil || first != 2 {
		t.Fatalf("first Run = (%d, %v), want (2, nil)", first, err)
	}
	second, err := c.Run(context.Background())
	if err != nil || second != 0 {
		t.Fatalf("second Run = (%d, %v), want (0, nil)", second, err)
	}
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	store := newMemJobs()
	c := NewCoordinator([]sources.Adapter{
		&fakeAdapter{name: "broken", err: errors.New("nil client")},
		&fakeAdapter{name: "remoteok", jobs: raw("1")},
	}, store, &fakeEmbedder{})

	n, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("stored %d, want 1", n)
	}
}

func TestRunContinuesAfterStorageFailure(t *testing.T) {
	store := newMemJobs()
	store.insertErr = errors.New("connection reset")
	c := NewCoordinator([]sources.Adapter{
		&fakeAdapter{name: "remoteok", jobs: raw("1")},
		&fakeAdapter{name: "arbeitnow", jobs: raw("2")},
	}, store, &fakeEmbedder{})

	n, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 || store.inserts != 2 {
		t.Errorf("got n=%d inserts=%d, want 0 and 2", n, store.inserts)
	}
}

func TestRunKeepsPostingWhenEmbeddingFails(t *testing.T) {
	store := newMemJobs()
	emb := &fakeEmbedder{fail: map[string]bool{"x": true}}
	c := NewCoordinator([]sources.Adapter{&fakeAdapter{name: "remoteok", jobs: raw("x", "y")}}, store, emb)

	n, err := c.Run(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Run = (%d, %v), want (2, nil)", n, err)
	}
	if store.rows["remoteok/x"].Embedding != nil {
		t.Error("failed embedding should leave the vector nil")
	}
	if store.rows["remoteok/y"].Embedding == nil {
		t.Error("successful embedding was not stored")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCoordinator([]sources.Adapter{&fakeAdapter{name: "remoteok", jobs: raw("1")}}, newMemJobs(), &fakeEmbedder{})

	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackfillEmbeddings(t *testing.T) {
	store := newMemJobs(
		models.JobPosting{ID: "remoteok/1", Source: "remoteok", SourceID: "1", CreatedAt: time.Now()},
		models.JobPosting{ID: "remoteok/2", Source: "remoteok", SourceID: "2"},
		models.JobPosting{ID: "remoteok/3", Source: "remoteok", SourceID: "3", Embedding: []float32{0, 1}},
	)
	emb := &fakeEmbedder{fail: map[string]bool{"2": true}}
	c := NewCoordinator(nil, store, emb)

	n, err := c.BackfillEmbeddings(context.Background(), 10)
	if err != nil {
		t.Fatalf("BackfillEmbeddings: %v", err)
	}
	if n != 1 {
		t.Errorf("backfilled %d, want 1", n)
	}
	if store.rows["remoteok/1"].Embedding == nil || store.rows["remoteok/2"].Embedding != nil {
		t.Error("unexpected embeddings after backfill")
	}
}
