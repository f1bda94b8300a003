package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/core/sources"
	"github.com/markdave123-py/jobmatch/internal/logger"
	"github.com/markdave123-py/jobmatch/internal/models"
)

// JobEmbedder fills a posting's embedding in place.
type JobEmbedder interface {
	EmbedJob(ctx context.Context, job *models.JobPosting) (bool, error)
}

// Coordinator pulls every registered source and stores postings not seen before.
type Coordinator struct {
	adapters []sources.Adapter
	jobs     core.JobStore
	embedder JobEmbedder
}

var _ Ingestor = (*Coordinator)(nil)

func NewCoordinator(adapters []sources.Adapter, jobs core.JobStore, embedder JobEmbedder) *Coordinator {
	return &Coordinator{adapters: adapters, jobs: jobs, embedder: embedder}
}

// Run fetches all sources concurrently, then dedupes, embeds and stores each
// source's batch in registry order. It returns the number of new postings.
// A failing source is logged and skipped; only cancellation is an error.
func (c *Coordinator) Run(ctx context.Context) (int, error) {
	ctx = logger.SetComponent(ctx, "ingestion")
	log := logger.FromContext(ctx)
	start := time.Now()

	fetched := make([][]sources.RawJob, len(c.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.adapters {
		g.Go(func() error {
			raw, err := a.Fetch(gctx)
			if err != nil {
				log.WithField(logger.FieldSource, a.Name()).WithError(err).Error("source fetch failed")
				return nil
			}
			fetched[i] = raw
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("ingestion: %w", err)
	}

	total := 0
	for i, a := range c.adapters {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("ingestion: %w", err)
		}
		n, err := c.storeBatch(ctx, a.Name(), fetched[i])
		if err != nil {
			log.WithField(logger.FieldSource, a.Name()).WithError(err).Error("source batch not stored")
			continue
		}
		total += n
	}

	log.WithFields(logger.Fields{
		logger.FieldCount:      total,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("ingestion finished")
	return total, nil
}

func (c *Coordinator) storeBatch(ctx context.Context, source string, raw []sources.RawJob) (int, error) {
	log := logger.FromContext(ctx).WithField(logger.FieldSource, source)

	seen := make(map[string]struct{}, len(raw))
	fresh := make([]models.JobPosting, 0, len(raw))
	for _, r := range raw {
		if _, dup := seen[r.SourceID]; dup {
			continue
		}
		seen[r.SourceID] = struct{}{}

		exists, err := c.jobs.JobExists(ctx, source, r.SourceID)
		if err != nil {
			return 0, fmt.Errorf("check %s/%s: %w", source, r.SourceID, err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, r.ToPosting(source))
	}
	if len(fresh) == 0 {
		log.Info("no new postings")
		return 0, nil
	}

	for i := range fresh {
		if _, err := c.embedder.EmbedJob(ctx, &fresh[i]); err != nil {
			log.WithField("source_id", fresh[i].SourceID).WithError(err).Warn("embedding failed; storing posting without vector")
		}
	}

	n, err := c.jobs.InsertJobPostings(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("insert %s batch: %w", source, err)
	}
	log.WithField(logger.FieldCount, n).Info("stored new postings")
	return n, nil
}

// BackfillEmbeddings embeds up to limit stored postings that have no vector yet.
// Failures are logged per posting; the count of postings updated is returned.
func (c *Coordinator) BackfillEmbeddings(ctx context.Context, limit int) (int, error) {
	ctx = logger.SetComponent(ctx, "ingestion")
	log := logger.FromContext(ctx)

	pending, err := c.jobs.ListJobsWithoutEmbedding(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("backfill: list jobs: %w", err)
	}

	done := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return done, fmt.Errorf("backfill: %w", err)
		}
		job := &pending[i]
		jlog := log.WithField(logger.FieldJobID, job.ID)
		if _, err := c.embedder.EmbedJob(ctx, job); err != nil {
			jlog.WithError(err).Warn("backfill embedding failed")
			continue
		}
		if err := c.jobs.SetJobEmbedding(ctx, job.ID, job.Embedding); err != nil {
			jlog.WithError(err).Warn("backfill embedding not saved")
			continue
		}
		done++
	}
	log.WithFields(logger.Fields{logger.FieldCount: done, "candidates": len(pending)}).Info("backfill finished")
	return done, nil
}
