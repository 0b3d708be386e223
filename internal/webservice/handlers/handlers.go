// Package handlers provides the HTTP handlers for the review service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lvivas2/formTelecom/internal/review"
	"github.com/lvivas2/formTelecom/internal/revision"
	"github.com/lvivas2/formTelecom/internal/store"
)

// Reviewer is the session surface the revision handlers drive.
type Reviewer interface {
	Open(ctx context.Context, id string) (review.View, error)
	Apply(id string, changes map[string]any) (review.View, error)
	SaveNow(ctx context.Context, id string) (review.View, error)
	Transition(ctx context.Context, id string, status revision.Status) error
	Finish(ctx context.Context, id string, status revision.Status) (review.View, error)
	Close(id string) error
}

// viewPayload is the wire shape of a session snapshot.
type viewPayload struct {
	Record   recordPayload  `json:"record"`
	Form     map[string]any `json:"form"`
	Autosave savePayload    `json:"autosave"`
}

type recordPayload struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	StatusLabel string  `json:"status_label"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   *string `json:"updated_at,omitempty"`
}

type savePayload struct {
	Saving bool   `json:"saving"`
	Saved  bool   `json:"saved"`
	Error  string `json:"error,omitempty"`
}

func toViewPayload(v review.View) viewPayload {
	p := viewPayload{
		Record: recordPayload{
			ID:          v.Record.ID,
			Status:      string(v.Record.Status),
			StatusLabel: v.Record.Status.Label(),
			CreatedAt:   v.Record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		Form: v.Form,
		Autosave: savePayload{
			Saving: v.Saving,
			Saved:  v.Saved,
		},
	}
	if v.Record.UpdatedAt != nil {
		updated := v.Record.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		p.Record.UpdatedAt = &updated
	}
	if v.Err != nil {
		p.Autosave.Error = v.Err.Error()
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// writeError maps domain errors to HTTP statuses: unknown revisions and
// sessions to 404, invalid statuses to 400, everything else to 500.
func writeError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, review.ErrNoSession):
		http.Error(w, "Revision not found", http.StatusNotFound)
	case errors.Is(err, revision.ErrInvalidStatus):
		http.Error(w, "Invalid status", http.StatusBadRequest)
	default:
		slog.Error("Request failed", "req_id", reqID, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
