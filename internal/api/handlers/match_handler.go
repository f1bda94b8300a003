package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/jobmatch/internal/models"
)

type MatchReader interface {
	MatchesForUser(ctx context.Context, userID string, offset, limit int) (models.MatchPage, error)
	MarkViewed(ctx context.Context, userID, matchID string) error
}

type MatchHandler struct {
	matches MatchReader
}

func NewMatchHandler(matches MatchReader) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// Latest returns a page of the user's most recent match batch.
func (h *MatchHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.matches.MatchesForUser(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MatchHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.matches.MarkViewed(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
