// Package matching_engine ranks recent job postings against a user's resume
// and records explained matches.
package matching_engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/logger"
	"github.com/markdave123-py/jobmatch/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the persistence the engine needs.
type Store interface {
	LatestParsedResume(ctx context.Context, userID string) (*models.Resume, error)
	core.MatchStore
}

type Engine struct {
	store     Store
	explainer core.MatchExplainer
	now       func() time.Time
}

func NewEngine(store Store, explainer core.MatchExplainer) *Engine {
	return &Engine{store: store, explainer: explainer, now: time.Now}
}

// MatchForUser matches the user's latest parsed resume against jobs created
// within lookback and stores up to topK new matches. It returns how many
// were stored. A user without a parsed resume yields 0 and no error.
func (e *Engine) MatchForUser(ctx context.Context, userID string, topK int, lookback time.Duration) (int, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "matching",
		logger.FieldUserID:    userID,
	})
	log := logger.FromContext(ctx)

	if topK <= 0 {
		return 0, fmt.Errorf("match user %s: %w: top_k must be positive", userID, core.ErrValidation)
	}

	resume, err := e.store.LatestParsedResume(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		log.Info("no parsed resume; nothing to match")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("match user %s: latest resume: %w", userID, err)
	}
	if len(resume.Embedding) == 0 {
		log.WithField(logger.FieldResumeID, resume.ID).Info("resume has no embedding; nothing to match")
		return 0, nil
	}

	since := e.now().Add(-lookback)
	candidates, err := e.store.NearestJobs(ctx, resume.Embedding, since, topK)
	if err != nil {
		return 0, fmt.Errorf("match user %s: rank jobs: %w", userID, err)
	}
	sortCandidates(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	var matches []models.Match
	for _, c := range candidates {
		jlog := log.WithField(logger.FieldJobID, c.Job.ID)

		exists, err := e.store.MatchExists(ctx, userID, c.Job.ID)
		if err != nil {
			jlog.WithError(err).Warn("match lookup failed; skipping candidate")
			continue
		}
		if exists {
			continue
		}

		rationale, err := e.explainer.ExplainMatch(ctx, resume.ExtractedText, c.Job.Description)
		if err != nil {
			if ctx.Err() != nil {
				return 0, fmt.Errorf("match user %s: %w", userID, ctx.Err())
			}
			jlog.WithError(err).Warn("rationale failed; skipping candidate")
			continue
		}

		matches = append(matches, models.Match{
			UserID:          userID,
			ResumeID:        resume.ID,
			JobID:           c.Job.ID,
			SimilarityScore: 1 - c.Distance,
			Rationale:       rationale,
		})
	}
	if len(matches) == 0 {
		log.WithField("candidates", len(candidates)).Info("no new matches")
		return 0, nil
	}

	n, err := e.store.InsertMatches(ctx, matches)
	if err != nil {
		return 0, fmt.Errorf("match user %s: store matches: %w", userID, err)
	}
	log.WithFields(logger.Fields{logger.FieldCount: n, "candidates": len(candidates)}).Info("matches stored")
	return n, nil
}

// sortCandidates orders by ascending distance, ties by ascending job id.
func sortCandidates(c []models.ScoredJob) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Distance != c[j].Distance {
			return c[i].Distance < c[j].Distance
		}
		return c[i].Job.ID < c[j].Job.ID
	})
}

// MatchesForUser pages through the user's most recent match batch.
func (e *Engine) MatchesForUser(ctx context.Context, userID string, offset, limit int) (models.MatchPage, error) {
	if offset < 0 {
		return models.MatchPage{}, fmt.Errorf("%w: offset must not be negative", core.ErrValidation)
	}
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 0 || limit > MaxPageSize:
		return models.MatchPage{}, fmt.Errorf("%w: limit must be between 1 and %d", core.ErrValidation, MaxPageSize)
	}

	matches, batchTotal, err := e.store.LatestMatchBatch(ctx, userID, offset, limit)
	if err != nil {
		return models.MatchPage{}, fmt.Errorf("list matches: %w", err)
	}
	allTime, err := e.store.CountMatches(ctx, userID)
	if err != nil {
		return models.MatchPage{}, fmt.Errorf("count matches: %w", err)
	}
	if matches == nil {
		matches = []models.Match{}
	}
	return models.MatchPage{
		Matches:    matches,
		BatchTotal: batchTotal,
		AllTime:    allTime,
		Offset:     offset,
		Limit:      limit,
	}, nil
}

func (e *Engine) MarkViewed(ctx context.Context, userID, matchID string) error {
	if err := e.store.MarkMatchViewed(ctx, userID, matchID); err != nil {
		return fmt.Errorf("mark match %s viewed: %w", matchID, err)
	}
	return nil
}
