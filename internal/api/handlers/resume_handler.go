package handlers

import (
	"context"
	"net/http"

	middleware "github.com/markdave123-py/jobmatch/internal/api/middlewares"
	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
	"github.com/markdave123-py/jobmatch/internal/services"
)

// ResumeService is the subset of services.ResumeService the handler uses.
type ResumeService interface {
	CreateUploadIntent(ctx context.Context, userID string, req services.UploadRequest) (*services.UploadIntent, error)
	UpdateStatus(ctx context.Context, userID, resumeID string, upd services.StatusUpdate) (*models.Resume, error)
	List(ctx context.Context, userID string, offset, limit int) ([]models.Resume, int, error)
	Get(ctx context.Context, userID, resumeID string) (*models.Resume, error)
	DownloadURL(ctx context.Context, userID, resumeID string) (string, error)
	Delete(ctx context.Context, userID, resumeID string) error
}

type ResumeHandler struct {
	resumes ResumeService
}

func NewResumeHandler(resumes ResumeService) *ResumeHandler {
	return &ResumeHandler{resumes: resumes}
}

type resumeList struct {
	Resumes []models.Resume `json:"resumes"`
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, r, core.ErrUnauthorized)
	}
	return userID, ok
}

func (h *ResumeHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req services.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	intent, err := h.resumes.CreateUploadIntent(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (h *ResumeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var upd services.StatusUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resume, err := h.resumes.UpdateStatus(r.Context(), userID, id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

func (h *ResumeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.resumes.List(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeList{Resumes: items, Total: total, Offset: offset, Limit: limit})
}

func (h *ResumeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resume, err := h.resumes.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

func (h *ResumeHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.resumes.DownloadURL(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *ResumeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.resumes.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
