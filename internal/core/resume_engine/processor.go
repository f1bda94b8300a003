// Package resume_engine drives an uploaded resume through download,
// extraction, analysis and embedding.
package resume_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/logger"
	"github.com/markdave123-py/jobmatch/internal/models"
)

const finishTimeout = 10 * time.Second

// ResumeEmbedder fills a resume's embedding from its extracted text.
type ResumeEmbedder interface {
	EmbedResume(ctx context.Context, r *models.Resume) (bool, error)
}

// Processor runs the uploaded -> processing -> parsed|failed leg of the
// resume state machine.
type Processor struct {
	resumes    core.ResumeStore
	obj        core.ObjectClient
	extractor  core.TextExtractor
	analyzer   core.ResumeAnalyzer
	embedder   ResumeEmbedder
	scratchDir string
	now        func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithScratchDir sets where downloads are staged. The default is os.TempDir.
func WithScratchDir(dir string) Option {
	return func(p *Processor) { p.scratchDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(
	resumes core.ResumeStore,
	obj core.ObjectClient,
	extractor core.TextExtractor,
	analyzer core.ResumeAnalyzer,
	embedder ResumeEmbedder,
	opts ...Option,
) *Processor {
	p := &Processor{
		resumes:   resumes,
		obj:       obj,
		extractor: extractor,
		analyzer:  analyzer,
		embedder:  embedder,
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process claims an uploaded resume and runs it to parsed or failed.
// A resume that is not in uploaded is left alone and nil is returned.
// On failure the resume is stored as failed with the error text and the
// error is returned.
func (p *Processor) Process(ctx context.Context, resumeID string) error {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "resume_processor",
		logger.FieldResumeID:  resumeID,
	})
	log := logger.FromContext(ctx)

	claimed, err := p.resumes.TransitionResumeStatus(ctx, resumeID, models.ResumeStatusUploaded, models.ResumeStatusProcessing)
	if err != nil {
		return fmt.Errorf("claim resume %s: %w", resumeID, err)
	}
	if !claimed {
		log.Info("resume not in uploaded state; skipping")
		return nil
	}

	r, err := p.resumes.GetResume(ctx, resumeID)
	if err != nil {
		loadErr := fmt.Errorf("load resume %s: %w", resumeID, err)
		failed := &models.Resume{ID: resumeID, Status: models.ResumeStatusFailed, ErrorMessage: loadErr.Error()}
		if serr := p.finish(ctx, failed); serr != nil {
			return errors.Join(loadErr, serr)
		}
		return loadErr
	}
	r.Status = models.ResumeStatusProcessing

	start := time.Now()
	if runErr := p.run(ctx, r); runErr != nil {
		r.Status = models.ResumeStatusFailed
		r.ErrorMessage = runErr.Error()
		if err := p.finish(ctx, r); err != nil {
			return errors.Join(runErr, err)
		}
		log.WithError(runErr).Warn("resume processing failed")
		return runErr
	}

	parsedAt := p.now().UTC()
	r.Status = models.ResumeStatusParsed
	r.ErrorMessage = ""
	r.ParsedAt = &parsedAt
	if err := p.finish(ctx, r); err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"skills":               len(r.Skills),
	}).Info("resume parsed")
	return nil
}

// finish stores the terminal state of a claimed resume. The write outlives
// cancellation of ctx but has its own deadline.
func (p *Processor) finish(ctx context.Context, r *models.Resume) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := p.resumes.SaveResumeResult(sctx, r); err != nil {
		return fmt.Errorf("save %s resume: %w", r.Status, err)
	}
	return nil
}

// run performs download, extraction, analysis and embedding in order,
// writing results into r as each step succeeds.
func (p *Processor) run(ctx context.Context, r *models.Resume) error {
	text, err := p.downloadAndExtract(ctx, r)
	if err != nil {
		return err
	}
	r.ExtractedText = text

	analysis, err := p.analyzer.AnalyzeResume(ctx, text)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	r.Summary = analysis.ProfessionalSummary
	r.Skills = analysis.Skills
	r.JobTitles = analysis.PotentialJobTitles

	r.Embedding = nil
	if _, err := p.embedder.EmbedResume(ctx, r); err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	return nil
}

func (p *Processor) downloadAndExtract(ctx context.Context, r *models.Resume) (string, error) {
	if !Supported(r.ContentType) {
		return "", fmt.Errorf("extract %q: %w", r.ContentType, core.ErrUnsupportedContentType)
	}

	f, err := os.CreateTemp(p.scratchDir, "resume-*")
	if err != nil {
		return "", fmt.Errorf("scratch file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	if _, err := p.obj.DownloadToFile(ctx, r.Bucket, r.ObjectKey, f); err != nil {
		return "", fmt.Errorf("download %s: %w", r.ObjectKey, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind scratch file: %w", err)
	}

	text, err := p.extractor.ExtractText(ctx, f, r.ContentType)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("extract: document contains no text")
	}
	return text, nil
}
