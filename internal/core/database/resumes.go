package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

const resumeColumns = `id, user_id, file_name, original_file_name, file_size, content_type, bucket, object_key,
	status, upload_progress, error_message, extracted_text, summary, skills, job_titles, embedding, parsed_at,
	created_at, updated_at`

func (c *DatabaseClient) CreateResume(ctx context.Context, r *models.Resume) error {
	if r == nil {
		return errors.New("nil resume")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO resumes
			(id, user_id, file_name, original_file_name, file_size, content_type, bucket, object_key,
			 status, upload_progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		r.ID, r.UserID, r.FileName, r.OriginalFileName, r.FileSize, r.ContentType, r.Bucket, r.ObjectKey,
		string(r.Status), r.UploadProgress, nullTime(r.CreatedAt))
	return err
}

func (c *DatabaseClient) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	return c.oneResume(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id)
}

func (c *DatabaseClient) GetResumeForUser(ctx context.Context, id, userID string) (*models.Resume, error) {
	return c.oneResume(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1 AND user_id = $2`, id, userID)
}

// LatestParsedResume is the newest parsed resume with an embedding.
func (c *DatabaseClient) LatestParsedResume(ctx context.Context, userID string) (*models.Resume, error) {
	return c.oneResume(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE user_id = $1 AND status = 'parsed' AND embedding IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID)
}

func (c *DatabaseClient) ListResumesByUser(ctx context.Context, userID string, offset, limit int) ([]models.Resume, int, error) {
	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM resumes WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := scanResumes(rows)
	return out, total, err
}

func (c *DatabaseClient) UpdateResumeUpload(ctx context.Context, r *models.Resume, from models.ResumeStatus) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE resumes
		SET status = $3, upload_progress = $4, file_size = $5, error_message = $6, updated_at = now()
		WHERE id = $1 AND status = $2
	`, r.ID, string(from), string(r.Status), r.UploadProgress, r.FileSize, r.ErrorMessage)
	if err != nil {
		return err
	}
	return requireStatusRow(res, r.ID, from)
}

func (c *DatabaseClient) TransitionResumeStatus(ctx context.Context, id string, from, to models.ResumeStatus) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE resumes SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *DatabaseClient) SaveResumeResult(ctx context.Context, r *models.Resume) error {
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.JobTitles == nil {
		r.JobTitles = []string{}
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE resumes
		SET status = $2, error_message = $3, extracted_text = $4, summary = $5, skills = $6,
			job_titles = $7, embedding = $8, parsed_at = $9, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, r.ID, string(r.Status), r.ErrorMessage, r.ExtractedText, r.Summary, r.Skills,
		r.JobTitles, nullVector(r.Embedding), r.ParsedAt)
	if err != nil {
		return err
	}
	return requireStatusRow(res, r.ID, models.ResumeStatusProcessing)
}

func (c *DatabaseClient) DeleteResume(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "resume", id)
}

func (c *DatabaseClient) oneResume(ctx context.Context, q string, args ...any) (*models.Resume, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out, err := scanResumes(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resume: %w", core.ErrNotFound)
	}
	return &out[0], nil
}

func scanResumes(rows *sql.Rows) ([]models.Resume, error) {
	defer rows.Close()

	arr := textArrays()
	var out []models.Resume
	for rows.Next() {
		var (
			r      models.Resume
			status string
			emb    *pgvector.Vector
		)
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.FileName, &r.OriginalFileName, &r.FileSize, &r.ContentType, &r.Bucket,
			&r.ObjectKey, &status, &r.UploadProgress, &r.ErrorMessage, &r.ExtractedText, &r.Summary,
			arr(&r.Skills), arr(&r.JobTitles), &emb, &r.ParsedAt, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		r.Status = models.ResumeStatus(status)
		r.Embedding = vectorSlice(emb)
		out = append(out, r)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// requireStatusRow reports ErrStatusChanged when a status-guarded update matched nothing.
func requireStatusRow(res sql.Result, id string, from models.ResumeStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("resume %s no longer %s: %w", id, from, core.ErrStatusChanged)
	}
	return nil
}
