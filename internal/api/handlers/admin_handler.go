package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/jobmatch/internal/core/queue"
)

type Triggers interface {
	TriggerDaily(ctx context.Context) (queue.Task, error)
	TriggerIngest(ctx context.Context) (queue.Task, error)
}

// AdminHandler starts background runs on demand.
type AdminHandler struct {
	triggers Triggers
}

func NewAdminHandler(triggers Triggers) *AdminHandler {
	return &AdminHandler{triggers: triggers}
}

type triggerResponse struct {
	TaskID string     `json:"task_id"`
	Kind   queue.Kind `json:"kind"`
}

func (h *AdminHandler) RunDaily(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.triggers.TriggerDaily)
}

func (h *AdminHandler) RunIngest(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.triggers.TriggerIngest)
}

func (h *AdminHandler) trigger(w http.ResponseWriter, r *http.Request, fn func(context.Context) (queue.Task, error)) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	t, err := fn(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{TaskID: t.ID, Kind: t.Kind})
}
