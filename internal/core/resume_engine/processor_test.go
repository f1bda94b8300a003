package resume_engine

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

type memResumes struct {
	core.ResumeStore
	rows   map[string]models.Resume
	saves  int
	getErr error
}

func (m *memResumes) TransitionResumeStatus(_ context.Context, id string, from, to models.ResumeStatus) (bool, error) {
	r, ok := m.rows[id]
	if !ok {
		return false, core.ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	m.rows[id] = r
	return true, nil
}

func (m *memResumes) GetResume(_ context.Context, id string) (*models.Resume, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &r, nil
}

// SaveResumeResult fails on a done context and applies only to a resume
// still in processing, as the SQL store does.
func (m *memResumes) SaveResumeResult(ctx context.Context, r *models.Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cur, ok := m.rows[r.ID]; !ok || cur.Status != models.ResumeStatusProcessing {
		return core.ErrStatusChanged
	}
	m.saves++
	m.rows[r.ID] = *r
	return nil
}

type fakeObjects struct {
	core.ObjectClient
	body string
	err  error
}

func (f *fakeObjects) DownloadToFile(_ context.Context, _, _ string, w io.WriterAt) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.WriteAt([]byte(f.body), 0)
	return int64(n), err
}

type plainExtractor struct{}

func (plainExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

type stubAnalyzer struct {
	out    *models.ResumeAnalysis
	err    error
	during func(ctx context.Context) error
}

func (s stubAnalyzer) AnalyzeResume(ctx context.Context, _ string) (*models.ResumeAnalysis, error) {
	if s.during != nil {
		if err := s.during(ctx); err != nil {
			return nil, err
		}
	}
	return s.out, s.err
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) EmbedResume(_ context.Context, r *models.Resume) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	r.Embedding = []float32{1, 0}
	return true, nil
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func uploaded(contentType string) *memResumes {
	return &memResumes{rows: map[string]models.Resume{
		"r1": {ID: "r1", UserID: "u1", Bucket: "b", ObjectKey: "resumes/user_u1/x.pdf", ContentType: contentType, Status: models.ResumeStatusUploaded},
	}}
}

func newTestProcessor(t *testing.T, store *memResumes, obj *fakeObjects, an stubAnalyzer, emb stubEmbedder) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	return NewProcessor(store, obj, plainExtractor{}, an, emb, WithScratchDir(dir), WithClock(func() time.Time { return fixedNow })), dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned up: %d entries left", len(entries))
	}
}

func TestProcessParsesResume(t *testing.T) {
	store := uploaded(ContentTypePDF)
	analysis := &models.ResumeAnalysis{ProfessionalSummary: "Go engineer", Skills: []string{"Go"}, PotentialJobTitles: []string{"Backend Engineer"}}
	p, dir := newTestProcessor(t, store, &fakeObjects{body: "Jane Doe\nGo, SQL"}, stubAnalyzer{out: analysis}, stubEmbedder{})

	if err := p.Process(context.Background(), "r1"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := store.rows["r1"]
	want := models.Resume{
		ID: "r1", UserID: "u1", Bucket: "b", ObjectKey: "resumes/user_u1/x.pdf", ContentType: ContentTypePDF,
		Status:        models.ResumeStatusParsed,
		ExtractedText: "Jane Doe\nGo, SQL",
		Summary:       "Go engineer",
		Skills:        []string{"Go"},
		JobTitles:     []string{"Backend Engineer"},
		Embedding:     []float32{1, 0},
		ParsedAt:      &fixedNow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resume mismatch (-want +got):\n%s", diff)
	}
	assertScratchEmpty(t, dir)
}

func TestProcessAnalysisFailureKeepsText(t *testing.T) {
	store := uploaded(ContentTypeDocx)
	p, dir := newTestProcessor(t, store, &fakeObjects{body: "resume text"}, stubAnalyzer{err: core.ErrQuotaExceeded}, stubEmbedder{})

	err := p.Process(context.Background(), "r1")
	if !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	got := store.rows["r1"]
	if got.Status != models.ResumeStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ExtractedText != "resume text" {
		t.Errorf("extracted text lost: %q", got.ExtractedText)
	}
	if got.Embedding != nil || got.ParsedAt != nil {
		t.Error("failed resume must have no embedding or parsed_at")
	}
	if got.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	assertScratchEmpty(t, dir)
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		obj         *fakeObjects
		emb         stubEmbedder
		want        error
		wantInError string
	}{
		{name: "unsupported type", contentType: "image/png", obj: &fakeObjects{body: "x"}, want: core.ErrUnsupportedContentType},
		{name: "download fails", contentType: ContentTypePDF, obj: &fakeObjects{err: core.ErrObjectNotFound}, want: core.ErrObjectNotFound},
		{name: "empty document", contentType: ContentTypePDF, obj: &fakeObjects{body: "  \n "}, wantInError: "no text"},
		{name: "embedding fails", contentType: ContentTypeDoc, obj: &fakeObjects{body: "text"}, emb: stubEmbedder{err: core.ErrAITimeout}, want: core.ErrAITimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := uploaded(tt.contentType)
			an := stubAnalyzer{out: &models.ResumeAnalysis{ProfessionalSummary: "s"}}
			p, dir := newTestProcessor(t, store, tt.obj, an, tt.emb)

			err := p.Process(context.Background(), "r1")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			got := store.rows["r1"]
			if got.Status != models.ResumeStatusFailed {
				t.Errorf("status = %s, want failed", got.Status)
			}
			if tt.wantInError != "" && !strings.Contains(got.ErrorMessage, tt.wantInError) {
				t.Errorf("error message %q does not mention %q", got.ErrorMessage, tt.wantInError)
			}
			assertScratchEmpty(t, dir)
		})
	}
}

func TestProcessStoresFailureAfterCancellation(t *testing.T) {
	store := uploaded(ContentTypePDF)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	an := stubAnalyzer{during: func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}}
	p, dir := newTestProcessor(t, store, &fakeObjects{body: "resume text"}, an, stubEmbedder{})

	if err := p.Process(ctx, "r1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	got := store.rows["r1"]
	if got.Status != models.ResumeStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "context canceled") {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
	if got.ExtractedText != "resume text" {
		t.Errorf("extracted text lost: %q", got.ExtractedText)
	}
	assertScratchEmpty(t, dir)
}

func TestProcessLoadFailureMarksFailed(t *testing.T) {
	store := uploaded(ContentTypePDF)
	store.getErr = errors.New("connection reset")
	p, _ := newTestProcessor(t, store, &fakeObjects{body: "x"}, stubAnalyzer{}, stubEmbedder{})

	if err := p.Process(context.Background(), "r1"); err == nil {
		t.Fatal("expected error")
	}
	got := store.rows["r1"]
	if got.Status != models.ResumeStatusFailed || !strings.Contains(got.ErrorMessage, "connection reset") {
		t.Errorf("got status %s error %q, want failed with the load error", got.Status, got.ErrorMessage)
	}
}

func TestProcessDoesNotOverwriteStatusChangedElsewhere(t *testing.T) {
	store := uploaded(ContentTypePDF)
	an := stubAnalyzer{
		out: &models.ResumeAnalysis{ProfessionalSummary: "s"},
		during: func(context.Context) error {
			r := store.rows["r1"]
			r.Status = models.ResumeStatusFailed
			r.ErrorMessage = "cancelled by user"
			store.rows["r1"] = r
			return nil
		},
	}
	p, _ := newTestProcessor(t, store, &fakeObjects{body: "text"}, an, stubEmbedder{})

	if err := p.Process(context.Background(), "r1"); !errors.Is(err, core.ErrStatusChanged) {
		t.Fatalf("err = %v, want ErrStatusChanged", err)
	}
	got := store.rows["r1"]
	if got.Status != models.ResumeStatusFailed || got.ErrorMessage != "cancelled by user" {
		t.Errorf("terminal state overwritten: %s %q", got.Status, got.ErrorMessage)
	}
}

func TestProcessSkipsUnlessUploaded(t *testing.T) {
	for _, st := range []models.ResumeStatus{models.ResumeStatusPending, models.ResumeStatusProcessing, models.ResumeStatusParsed, models.ResumeStatusFailed} {
		t.Run(string(st), func(t *testing.T) {
			store := uploaded(ContentTypePDF)
			r := store.rows["r1"]
			r.Status = st
			store.rows["r1"] = r

			p, _ := newTestProcessor(t, store, &fakeObjects{body: "x"}, stubAnalyzer{}, stubEmbedder{})
			if err := p.Process(context.Background(), "r1"); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if store.saves != 0 || store.rows["r1"].Status != st {
				t.Errorf("resume in %s was modified", st)
			}
		})
	}
}

func TestProcessMissingResume(t *testing.T) {
	p, _ := newTestProcessor(t, uploaded(ContentTypePDF), &fakeObjects{}, stubAnalyzer{}, stubEmbedder{})
	if err := p.Process(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"application/pdf":                 true,
		"application/pdf; charset=binary": true,
		ContentTypeDoc:                    true,
		ContentTypeDocx:                   true,
		"text/plain":                      false,
		"":                                false,
	}
	for ct, want := range tests {
		if got := Supported(ct); got != want {
			t.Errorf("Supported(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestDocconvExtractorRejectsUnknownType(t *testing.T) {
	_, err := NewDocconvExtractor().ExtractText(context.Background(), strings.NewReader("x"), "image/png")
	if !errors.Is(err, core.ErrUnsupportedContentType) {
		t.Errorf("err = %v, want ErrUnsupportedContentType", err)
	}
}
