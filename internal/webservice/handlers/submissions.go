package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Inserter is the intake surface of the store.
type Inserter interface {
	Insert(ctx context.Context, jsonOriginal json.RawMessage) (string, error)
}

// Submissions handles the upstream pipeline's form submissions, creating a
// pending revision per valid JSON payload.
type Submissions struct {
	store       Inserter
	maxBodySize int64
}

// NewSubmissions creates a new Submissions handler.
func NewSubmissions(store Inserter, maxBodySize int64) *Submissions {
	return &Submissions{
		store:       store,
		maxBodySize: maxBodySize,
	}
}

// ServeHTTP handles incoming submission requests.
func (h *Submissions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	slog.Info("Submission recv'd", "req_id", reqID)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		slog.Error("Error reading submission body", "req_id", reqID, "err", err)
		return
	}
	if !json.Valid(payload) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		slog.Error("Invalid JSON in submission", "req_id", reqID)
		return
	}

	id, err := h.store.Insert(r.Context(), payload)
	if err != nil {
		slog.Error("Error storing submission", "req_id", reqID, "err", err)
		http.Error(w, "Error storing submission", http.StatusInternalServerError)
		return
	}

	slog.Info("Submission stored", "req_id", reqID, "id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
