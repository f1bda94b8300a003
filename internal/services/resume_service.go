package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/core/queue"
	"github.com/markdave123-py/jobmatch/internal/core/resume_engine"
	"github.com/markdave123-py/jobmatch/internal/logger"
	"github.com/markdave123-py/jobmatch/internal/models"
)

const maxFileNameLen = 255

// ProcessTrigger schedules background processing of an uploaded resume.
type ProcessTrigger interface {
	TriggerProcess(ctx context.Context, resumeID string) (queue.Task, error)
}

type ResumeService struct {
	resumes  core.ResumeStore
	storage  core.ObjectClient
	trigger  ProcessTrigger
	maxBytes int64
}

func NewResumeService(resumes core.ResumeStore, storage core.ObjectClient, trigger ProcessTrigger, maxBytes int64) *ResumeService {
	return &ResumeService{resumes: resumes, storage: storage, trigger: trigger, maxBytes: maxBytes}
}

type UploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// UploadIntent is the pending resume row plus where the client should POST the file.
type UploadIntent struct {
	Resume *models.Resume       `json:"resume"`
	Upload *models.UploadTarget `json:"upload"`
}

// CreateUploadIntent validates the request, records a pending resume and
// returns a presigned POST for it.
func (s *ResumeService) CreateUploadIntent(ctx context.Context, userID string, req UploadRequest) (*UploadIntent, error) {
	name := strings.TrimSpace(req.FileName)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: file name is required", core.ErrValidation)
	case utf8.RuneCountInString(name) > maxFileNameLen:
		return nil, fmt.Errorf("%w: file name longer than %d characters", core.ErrValidation, maxFileNameLen)
	case !resume_engine.Supported(req.ContentType):
		return nil, fmt.Errorf("%w: content type %q: %w", core.ErrValidation, req.ContentType, core.ErrUnsupportedContentType)
	case req.FileSize < 1 || req.FileSize > s.maxBytes:
		return nil, fmt.Errorf("%w: file size must be between 1 and %d bytes", core.ErrValidation, s.maxBytes)
	}

	id := uuid.NewString()
	stored := id + "." + fileExt(name)
	key := path.Join("resumes", "user_"+userID, stored)

	target, err := s.storage.PresignUpload(ctx, key, req.ContentType, s.maxBytes, map[string]string{"upload-type": "resume"})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	r := &models.Resume{
		ID:               id,
		UserID:           userID,
		FileName:         stored,
		OriginalFileName: name,
		FileSize:         req.FileSize,
		ContentType:      req.ContentType,
		Bucket:           s.storage.Bucket(),
		ObjectKey:        key,
		Status:           models.ResumeStatusPending,
	}
	if err := s.resumes.CreateResume(ctx, r); err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}
	return &UploadIntent{Resume: r, Upload: target}, nil
}

// fileExt is the lower-cased extension of name, pdf when there is none.
func fileExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "pdf"
	}
	return ext
}

type StatusUpdate struct {
	Status       string   `json:"status"`
	Progress     *float64 `json:"upload_progress,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// UpdateStatus applies a client-reported upload status. Reporting uploaded
// checks the object exists; a missing object fails the resume. The write is
// conditioned on the status read, so a resume the pipeline claimed in the
// meantime yields ErrStatusChanged.
func (s *ResumeService) UpdateStatus(ctx context.Context, userID, resumeID string, upd StatusUpdate) (*models.Resume, error) {
	to, err := models.ParseResumeStatus(upd.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	if !to.ClientSettable() {
		return nil, fmt.Errorf("%w: status %q is set by the server", core.ErrValidation, to)
	}
	if upd.Progress != nil && (*upd.Progress < 0 || *upd.Progress > 1) {
		return nil, fmt.Errorf("%w: upload progress must be within [0, 1]", core.ErrValidation)
	}

	r, err := s.resumes.GetResumeForUser(ctx, resumeID, userID)
	if err != nil {
		return nil, err
	}
	from := r.Status
	switch {
	case from.IsTerminal():
		return nil, fmt.Errorf("%w: resume is already %s", core.ErrValidation, from)
	case !from.ClientCanTransition(to):
		return nil, fmt.Errorf("%w: cannot move resume from %s to %s", core.ErrValidation, from, to)
	}

	log := logger.FromContext(ctx).WithField(logger.FieldResumeID, r.ID)
	switch to {
	case models.ResumeStatusPending:
		if upd.Progress != nil {
			r.UploadProgress = *upd.Progress
		}
	case models.ResumeStatusFailed:
		r.Status = models.ResumeStatusFailed
		r.ErrorMessage = upd.ErrorMessage
		if r.ErrorMessage == "" {
			r.ErrorMessage = "upload failed on client"
		}
	case models.ResumeStatusUploaded:
		size, err := s.storage.StatObject(ctx, r.Bucket, r.ObjectKey)
		switch {
		case errors.Is(err, core.ErrObjectNotFound):
			r.Status = models.ResumeStatusFailed
			r.ErrorMessage = "upload reported complete but the file is not in storage"
			log.Warn("uploaded resume missing from storage")
		case err != nil:
			return nil, fmt.Errorf("verify upload: %w", err)
		default:
			r.Status = models.ResumeStatusUploaded
			r.FileSize = size
			r.UploadProgress = 1
			r.ErrorMessage = ""
		}
	}

	if err := s.resumes.UpdateResumeUpload(ctx, r, from); err != nil {
		return nil, fmt.Errorf("update resume: %w", err)
	}

	if r.Status == models.ResumeStatusUploaded {
		if _, err := s.trigger.TriggerProcess(ctx, r.ID); err != nil {
			log.WithError(err).Error("process task not enqueued")
		}
	}
	return r, nil
}

func (s *ResumeService) List(ctx context.Context, userID string, offset, limit int) ([]models.Resume, int, error) {
	if offset < 0 || limit < 0 || limit > 100 {
		return nil, 0, fmt.Errorf("%w: invalid pagination", core.ErrValidation)
	}
	if limit == 0 {
		limit = 20
	}
	items, total, err := s.resumes.ListResumesByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.Resume{}
	}
	return items, total, nil
}

func (s *ResumeService) Get(ctx context.Context, userID, resumeID string) (*models.Resume, error) {
	return s.resumes.GetResumeForUser(ctx, resumeID, userID)
}

// DownloadURL presigns a GET for a resume whose file is known to be stored.
func (s *ResumeService) DownloadURL(ctx context.Context, userID, resumeID string) (string, error) {
	r, err := s.resumes.GetResumeForUser(ctx, resumeID, userID)
	if err != nil {
		return "", err
	}
	switch r.Status {
	case models.ResumeStatusUploaded, models.ResumeStatusProcessing, models.ResumeStatusParsed:
	default:
		return "", fmt.Errorf("%w: resume file is not available in status %s", core.ErrValidation, r.Status)
	}
	return s.storage.PresignDownload(ctx, r.Bucket, r.ObjectKey)
}

// Delete removes the stored file, then the row. A file already gone is not an error.
func (s *ResumeService) Delete(ctx context.Context, userID, resumeID string) error {
	r, err := s.resumes.GetResumeForUser(ctx, resumeID, userID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteFile(ctx, r.Bucket, r.ObjectKey); err != nil && !errors.Is(err, core.ErrObjectNotFound) {
		return fmt.Errorf("delete resume file: %w", err)
	}
	return s.resumes.DeleteResume(ctx, r.ID)
}
