package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/jobmatch/internal/models"
)

const jobColumns = `id, source, source_id, title, company, description, tags, location, url, job_type,
	is_remote, salary_min, salary_max, salary_currency, extra, embedding, posted_at, created_at, updated_at`

func (c *DatabaseClient) JobExists(ctx context.Context, source, sourceID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_postings WHERE source = $1 AND source_id = $2)`,
		source, sourceID,
	).Scan(&exists)
	return exists, err
}

// InsertJobPostings inserts the batch in a single transaction. Rows whose
// (source, source_id) appeared concurrently are skipped, not raised.
func (c *DatabaseClient) InsertJobPostings(ctx context.Context, jobs []models.JobPosting) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}

	const q = `
		INSERT INTO job_postings
			(id, source, source_id, title, company, description, tags, location, url, job_type,
			 is_remote, salary_min, salary_max, salary_currency, extra, embedding, posted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			COALESCE($18, now()), now())
		ON CONFLICT (source, source_id) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for i := range jobs {
		j := &jobs[i]
		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		if j.Tags == nil {
			j.Tags = []string{}
		}
		res, err := stmt.ExecContext(ctx,
			j.ID, j.Source, j.SourceID, j.Title, j.Company, j.Description, j.Tags, j.Location, j.URL, j.JobType,
			j.IsRemote, j.SalaryMin, j.SalaryMax, j.SalaryCurrency, nullJSON(j.Extra), nullVector(j.Embedding),
			j.PostedAt, nullTime(j.CreatedAt),
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert job %s/%s: %w", j.Source, j.SourceID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (c *DatabaseClient) ListJobsWithoutEmbedding(ctx context.Context, limit int) ([]models.JobPosting, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM job_postings
		WHERE embedding IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

// SetJobEmbedding only fills a missing embedding; an existing one is never overwritten.
func (c *DatabaseClient) SetJobEmbedding(ctx context.Context, jobID string, embedding []float32) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE job_postings SET embedding = $2, updated_at = now()
		WHERE id = $1 AND embedding IS NULL
	`, jobID, pgvector.NewVector(embedding))
	return err
}

// NearestJobs ranks by cosine distance with job id as the tie-break.
func (c *DatabaseClient) NearestJobs(ctx context.Context, vec []float32, since time.Time, limit int) ([]models.ScoredJob, error) {
	const q = `
		SELECT ` + jobColumns + `, embedding <=> $1 AS distance
		FROM job_postings
		WHERE embedding IS NOT NULL AND created_at >= $2
		ORDER BY distance ASC, id ASC
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vec), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	arr := textArrays()
	var out []models.ScoredJob
	for rows.Next() {
		var (
			sj    models.ScoredJob
			emb   *pgvector.Vector
			extra []byte
		)
		j := &sj.Job
		if err := rows.Scan(
			&j.ID, &j.Source, &j.SourceID, &j.Title, &j.Company, &j.Description, arr(&j.Tags), &j.Location,
			&j.URL, &j.JobType, &j.IsRemote, &j.SalaryMin, &j.SalaryMax, &j.SalaryCurrency, &extra, &emb,
			&j.PostedAt, &j.CreatedAt, &j.UpdatedAt, &sj.Distance,
		); err != nil {
			return nil, err
		}
		j.Extra = extra
		j.Embedding = vectorSlice(emb)
		out = append(out, sj)
	}
	return out, rows.Err()
}

func scanJobs(rows *sql.Rows) ([]models.JobPosting, error) {
	defer rows.Close()

	arr := textArrays()
	var out []models.JobPosting
	for rows.Next() {
		var (
			j     models.JobPosting
			emb   *pgvector.Vector
			extra []byte
		)
		if err := rows.Scan(
			&j.ID, &j.Source, &j.SourceID, &j.Title, &j.Company, &j.Description, arr(&j.Tags), &j.Location,
			&j.URL, &j.JobType, &j.IsRemote, &j.SalaryMin, &j.SalaryMax, &j.SalaryCurrency, &extra, &emb,
			&j.PostedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		j.Extra = extra
		j.Embedding = vectorSlice(emb)
		out = append(out, j)
	}
	return out, rows.Err()
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
