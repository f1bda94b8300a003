package models

import (
	"encoding/json"
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastActiveAt *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
}

// JobPosting is a normalized job board listing. (Source, SourceID) is unique.
type JobPosting struct {
	ID             string          `db:"id" json:"id"`
	Source         string          `db:"source" json:"source"`
	SourceID       string          `db:"source_id" json:"source_id"`
	Title          string          `db:"title" json:"title"`
	Company        string          `db:"company" json:"company,omitempty"`
	Description    string          `db:"description" json:"description"`
	Tags           []string        `db:"tags" json:"tags"`
	Location       string          `db:"location" json:"location,omitempty"`
	URL            string          `db:"url" json:"url,omitempty"`
	JobType        string          `db:"job_type" json:"job_type,omitempty"`
	IsRemote       bool            `db:"is_remote" json:"is_remote"`
	SalaryMin      *int            `db:"salary_min" json:"salary_min,omitempty"`
	SalaryMax      *int            `db:"salary_max" json:"salary_max,omitempty"`
	SalaryCurrency string          `db:"salary_currency" json:"salary_currency,omitempty"`
	Extra          json.RawMessage `db:"extra" json:"extra,omitempty"`
	Embedding      []float32       `db:"embedding" json:"-"` // pgvector column, nil until embedded
	PostedAt       *time.Time      `db:"posted_at" json:"posted_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Resume is a user-uploaded CV and everything derived from it.
type Resume struct {
	ID               string       `db:"id" json:"id"`
	UserID           string       `db:"user_id" json:"user_id"`
	FileName         string       `db:"file_name" json:"file_name"`
	OriginalFileName string       `db:"original_file_name" json:"original_file_name"`
	FileSize         int64        `db:"file_size" json:"file_size"`
	ContentType      string       `db:"content_type" json:"content_type"`
	Bucket           string       `db:"bucket" json:"-"`
	ObjectKey        string       `db:"object_key" json:"-"`
	Status           ResumeStatus `db:"status" json:"status"`
	UploadProgress   float64      `db:"upload_progress" json:"upload_progress"`
	ErrorMessage     string       `db:"error_message" json:"error_message,omitempty"`
	ExtractedText    string       `db:"extracted_text" json:"-"`
	Summary          string       `db:"summary" json:"summary,omitempty"`
	Skills           []string     `db:"skills" json:"skills,omitempty"`
	JobTitles        []string     `db:"job_titles" json:"job_titles,omitempty"`
	Embedding        []float32    `db:"embedding" json:"-"`
	ParsedAt         *time.Time   `db:"parsed_at" json:"parsed_at,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Match links a user's resume to a job posting. At most one per (UserID, JobID).
type Match struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ResumeID        string    `db:"resume_id" json:"resume_id"`
	JobID           string    `db:"job_id" json:"job_id"`
	SimilarityScore float64   `db:"similarity_score" json:"similarity_score"`
	Rationale       string    `db:"rationale" json:"rationale,omitempty"`
	Viewed          bool      `db:"viewed" json:"viewed"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	Job *JobPosting `db:"-" json:"job,omitempty"`
}

// ScoredJob is a ranking candidate: a job and its cosine distance to a resume.
type ScoredJob struct {
	Job      JobPosting
	Distance float64
}

// ResumeAnalysis is the structured output of the AI resume analysis.
type ResumeAnalysis struct {
	ProfessionalSummary string   `json:"professional_summary"`
	Skills              []string `json:"skills"`
	PotentialJobTitles  []string `json:"potential_job_titles"`
}

// UploadTarget is a presigned, form-based upload descriptor handed to clients.
type UploadTarget struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// MatchPage is one page of a user's latest match batch.
type MatchPage struct {
	Matches    []Match `json:"matches"`
	BatchTotal int     `json:"batch_total"`
	AllTime    int     `json:"all_time_total"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}
