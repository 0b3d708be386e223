// Package revision defines the persisted form revision model and its status lifecycle.
package revision

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a form revision.
type Status string

// Revision lifecycle states. Records are created as pending by the upstream
// pipeline, promoted to in_review when an analyst first opens them, and moved
// to completed or processed by hand afterwards.
const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusCompleted Status = "completed"
	StatusProcessed Status = "processed"
)

// ErrInvalidStatus is returned when a status value outside the lifecycle is used.
var ErrInvalidStatus = errors.New("invalid revision status")

var statusLabels = map[Status]string{
	StatusPending:   "Pendiente",
	StatusInReview:  "En Revisión",
	StatusCompleted: "Completado",
	StatusProcessed: "Procesado",
}

// AllStatuses returns the lifecycle states in their display order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInReview, StatusCompleted, StatusProcessed}
}

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether the status is one of the lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the Spanish display label for the status, or the raw value
// for anything outside the lifecycle.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Record is a persisted form revision row.
//
// JSONOriginal is written by the upstream pipeline only and is read-only to
// this service. JSONFinal holds the analyst's edits and may be nil until the
// first save.
type Record struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	JSONOriginal json.RawMessage `json:"json_original"`
	JSONFinal    json.RawMessage `json:"json_final"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at"`
}

// Summary is the listing projection of a revision row.
type Summary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
