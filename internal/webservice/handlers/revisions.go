package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lvivas2/formTelecom/internal/revision"
)

// Lister is the listing surface of the store.
type Lister interface {
	List(ctx context.Context, statuses ...revision.Status) ([]revision.Summary, error)
}

// Revisions handles the analyst-facing revision endpoints.
type Revisions struct {
	store    Lister
	reviewer Reviewer

	maxBodySize int64
}

// NewRevisions creates a new Revisions handler.
func NewRevisions(store Lister, reviewer Reviewer, maxBodySize int64) *Revisions {
	return &Revisions{
		store:       store,
		reviewer:    reviewer,
		maxBodySize: maxBodySize,
	}
}

// List serves GET /revisions, optionally filtered by one or more status
// query parameters.
func (h *Revisions) List(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()

	var statuses []revision.Status
	for _, raw := range r.URL.Query()["status"] {
		status, err := revision.ParseStatus(raw)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		statuses = append(statuses, status)
	}

	summaries, err := h.store.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if summaries == nil {
		summaries = []revision.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Open serves GET /revisions/{id}: it opens (or returns) the edit session and
// the merged form data.
func (h *Revisions) Open(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	view, err := h.reviewer.Open(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	slog.Info("Revision opened", "req_id", reqID, "id", id, "status", view.Record.Status)
	writeJSON(w, http.StatusOK, toViewPayload(view))
}

// ApplyForm serves PATCH /revisions/{id}/form: field edits merged into the
// session and persisted through the debounced autosave.
func (h *Revisions) ApplyForm(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	changes, ok := h.decodeObject(w, r, reqID)
	if !ok {
		return
	}

	view, err := h.reviewer.Apply(id, changes)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewPayload(view))
}

// Save serves POST /revisions/{id}/save: an immediate flush bypassing the
// autosave debounce.
func (h *Revisions) Save(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	view, err := h.reviewer.SaveNow(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewPayload(view))
}

// SetStatus serves PATCH /revisions/{id}/status: a status change on its own
// write path, leaving form data untouched.
func (h *Revisions) SetStatus(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	status, ok := h.decodeStatus(w, r, reqID)
	if !ok {
		return
	}

	if err := h.reviewer.Transition(r.Context(), id, status); err != nil {
		writeError(w, reqID, err)
		return
	}
	slog.Info("Revision status changed", "req_id", reqID, "id", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// Finish serves PUT /revisions/{id}: the session's form data and the given
// status are written together.
func (h *Revisions) Finish(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	status, ok := h.decodeStatus(w, r, reqID)
	if !ok {
		return
	}

	view, err := h.reviewer.Finish(r.Context(), id, status)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	slog.Info("Revision finished", "req_id", reqID, "id", id, "status", status)
	writeJSON(w, http.StatusOK, toViewPayload(view))
}

// CloseSession serves DELETE /revisions/{id}/session, tearing down the edit
// session and cancelling any pending autosave.
func (h *Revisions) CloseSession(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	id := r.PathValue("id")

	if err := h.reviewer.Close(id); err != nil {
		writeError(w, reqID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Revisions) decodeObject(w http.ResponseWriter, r *http.Request, reqID string) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		slog.Error("Invalid JSON in request body", "req_id", reqID, "err", err)
		return nil, false
	}
	return payload, true
}

func (h *Revisions) decodeStatus(w http.ResponseWriter, r *http.Request, reqID string) (revision.Status, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		slog.Error("Invalid JSON in request body", "req_id", reqID, "err", err)
		return "", false
	}

	status, err := revision.ParseStatus(payload.Status)
	if err != nil {
		writeError(w, reqID, err)
		return "", false
	}
	return status, true
}
