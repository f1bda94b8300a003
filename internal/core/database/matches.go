package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/jobmatch/internal/models"
)

func (c *DatabaseClient) MatchExists(ctx context.Context, userID, jobID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE user_id = $1 AND job_id = $2)`, userID, jobID,
	).Scan(&exists)
	return exists, err
}

// InsertMatches writes all matches in one transaction. The (user_id, job_id)
// constraint turns a concurrent duplicate into a skipped row.
func (c *DatabaseClient) InsertMatches(ctx context.Context, matches []models.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (id, user_id, resume_id, job_id, similarity_score, rationale, viewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		ON CONFLICT (user_id, job_id) DO NOTHING
	`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for i := range matches {
		m := &matches[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		res, err := stmt.ExecContext(ctx,
			m.ID, m.UserID, m.ResumeID, m.JobID, m.SimilarityScore, m.Rationale, m.Viewed, nullTime(m.CreatedAt))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert match for job %s: %w", m.JobID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LatestMatchBatch returns the page of matches sharing the resume of the
// user's newest match, and the size of that batch.
func (c *DatabaseClient) LatestMatchBatch(ctx context.Context, userID string, offset, limit int) ([]models.Match, int, error) {
	var resumeID sql.NullString
	err := c.db.QueryRowContext(ctx, `
		SELECT resume_id FROM matches
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID).Scan(&resumeID)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM matches WHERE user_id = $1 AND resume_id = $2`, userID, resumeID.String,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.resume_id, m.job_id, m.similarity_score, m.rationale, m.viewed, m.created_at,
			j.source, j.source_id, j.title, j.company, j.location, j.url, j.job_type, j.is_remote, j.posted_at
		FROM matches m
		JOIN job_postings j ON j.id = m.job_id
		WHERE m.user_id = $1 AND m.resume_id = $2
		ORDER BY m.similarity_score DESC, m.job_id ASC
		OFFSET $3 LIMIT $4
	`, userID, resumeID.String, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var (
			m models.Match
			j models.JobPosting
		)
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.ResumeID, &m.JobID, &m.SimilarityScore, &m.Rationale, &m.Viewed, &m.CreatedAt,
			&j.Source, &j.SourceID, &j.Title, &j.Company, &j.Location, &j.URL, &j.JobType, &j.IsRemote, &j.PostedAt,
		); err != nil {
			return nil, 0, err
		}
		j.ID = m.JobID
		m.Job = &j
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (c *DatabaseClient) CountMatches(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM matches WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (c *DatabaseClient) MarkMatchViewed(ctx context.Context, userID, matchID string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE matches SET viewed = TRUE WHERE id = $1 AND user_id = $2`, matchID, userID)
	if err != nil {
		return err
	}
	return requireRow(res, "match", matchID)
}
