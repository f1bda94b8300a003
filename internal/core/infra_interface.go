package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/jobmatch/internal/models"
)

// UserStore persists users. Lookups return ErrNotFound when nothing matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListActiveUserIDs(ctx context.Context) ([]string, error)
	TouchUser(ctx context.Context, id string) error
}

// JobStore persists job postings keyed by (source, source_id).
type JobStore interface {
	JobExists(ctx context.Context, source, sourceID string) (bool, error)
	// InsertJobPostings writes the batch in one transaction and returns how many rows were new.
	InsertJobPostings(ctx context.Context, jobs []models.JobPosting) (int, error)
	ListJobsWithoutEmbedding(ctx context.Context, limit int) ([]models.JobPosting, error)
	SetJobEmbedding(ctx context.Context, jobID string, embedding []float32) error
}

// ResumeStore persists resumes and their processing results.
type ResumeStore interface {
	CreateResume(ctx context.Context, r *models.Resume) error
	GetResume(ctx context.Context, id string) (*models.Resume, error)
	GetResumeForUser(ctx context.Context, id, userID string) (*models.Resume, error)
	ListResumesByUser(ctx context.Context, userID string, offset, limit int) ([]models.Resume, int, error)
	// UpdateResumeUpload writes the client-facing upload fields: status, progress, size, error.
	// It applies only while the stored status is still from, else ErrStatusChanged.
	UpdateResumeUpload(ctx context.Context, r *models.Resume, from models.ResumeStatus) error
	// TransitionResumeStatus moves id from one status to another only if it is still in from.
	TransitionResumeStatus(ctx context.Context, id string, from, to models.ResumeStatus) (bool, error)
	// SaveResumeResult writes status, error and every derived field of a resume
	// still in processing, else ErrStatusChanged.
	SaveResumeResult(ctx context.Context, r *models.Resume) error
	DeleteResume(ctx context.Context, id string) error
	LatestParsedResume(ctx context.Context, userID string) (*models.Resume, error)
}

// MatchStore persists matches and performs the vector ranking.
type MatchStore interface {
	// NearestJobs ranks embedded jobs created at or after since by ascending cosine
	// distance to vec, ties by ascending job id.
	NearestJobs(ctx context.Context, vec []float32, since time.Time, limit int) ([]models.ScoredJob, error)
	MatchExists(ctx context.Context, userID, jobID string) (bool, error)
	InsertMatches(ctx context.Context, matches []models.Match) (int, error)
	LatestMatchBatch(ctx context.Context, userID string, offset, limit int) ([]models.Match, int, error)
	CountMatches(ctx context.Context, userID string) (int, error)
	MarkMatchViewed(ctx context.Context, userID, matchID string) error
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	UserStore
	JobStore
	ResumeStore
	MatchStore
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	Bucket() string
	PresignUpload(ctx context.Context, key, contentType string, maxBytes int64, meta map[string]string) (*models.UploadTarget, error)
	PresignDownload(ctx context.Context, bucket, key string) (string, error)
	// StatObject returns the object size, or ErrObjectNotFound.
	StatObject(ctx context.Context, bucket, key string) (int64, error)
	DownloadToFile(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
