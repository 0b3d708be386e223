// Package review manages analyst edit sessions over form revisions.
//
// A session is created when a revision is opened and owns the merged form
// data for that record. Field edits are applied to the session and persisted
// through a debounced autosave; status changes go through the transition
// gate on a separate write path so the two flows never clobber each other.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lvivas2/formTelecom/internal/autosave"
	"github.com/lvivas2/formTelecom/internal/forms"
	"github.com/lvivas2/formTelecom/internal/revision"
)

// ErrNoSession is returned when an operation targets a revision that has no
// open edit session.
var ErrNoSession = errors.New("no open session for revision")

// Store is the persistence surface the review manager needs.
type Store interface {
	Get(ctx context.Context, id string) (revision.Record, error)
	SaveDraft(ctx context.Context, id string, jsonFinal json.RawMessage) error
	SetStatus(ctx context.Context, id string, status revision.Status) error
	Update(ctx context.Context, id string, jsonFinal json.RawMessage, status revision.Status) error
}

// View is the session snapshot returned to callers.
type View struct {
	Record revision.Record
	Form   map[string]any

	Saving bool
	Saved  bool
	Err    error
}

// Manager owns the open edit sessions. One session exists per open revision;
// reopening an already open revision returns the live session.
type Manager struct {
	store Store

	mu       sync.Mutex
	sessions map[string]*session

	debounce time.Duration
	clock    autosave.Clock

	openSessions     prometheus.Gauge
	autosaveFailures prometheus.Counter
}

type session struct {
	id string

	mu     sync.Mutex
	record revision.Record
	form   map[string]any
	saver  *autosave.Coordinator
}

type options struct {
	debounce time.Duration
	clock    autosave.Clock
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithDebounce overrides the autosave debounce window.
func WithDebounce(d time.Duration) Options {
	return func(o *options) { o.debounce = d }
}

// WithClock overrides the clock used by session autosave coordinators.
func WithClock(c autosave.Clock) Options {
	return func(o *options) { o.clock = c }
}

// New creates a review manager backed by the given store, registering its
// metrics with the provided Prometheus registerer.
func New(store Store, reg prometheus.Registerer, args ...Options) (*Manager, error) {
	opts := options{
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range args {
		opt(&opts)
	}

	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "review_open_sessions",
		Help: "Number of open review edit sessions.",
	})
	autosaveFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_autosave_failures_total",
		Help: "Number of failed autosave writes.",
	})
	if err := reg.Register(openSessions); err != nil {
		return nil, fmt.Errorf("failed to register open sessions gauge: %v", err)
	}
	if err := reg.Register(autosaveFailures); err != nil {
		return nil, fmt.Errorf("failed to register autosave failures counter: %v", err)
	}

	return &Manager{
		store:            store,
		sessions:         make(map[string]*session),
		debounce:         opts.debounce,
		clock:            opts.clock,
		openSessions:     openSessions,
		autosaveFailures: autosaveFailures,
	}, nil
}

// Open fetches a revision and creates its edit session, or returns the live
// session if the revision is already open.
//
// The first open of a pending record promotes it to in_review. A failed
// promotion is logged and the record is served with its last known status.
func (m *Manager) Open(ctx context.Context, id string) (View, error) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s.view(), nil
	}
	m.mu.Unlock()

	record, err := m.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}

	if record.Status == revision.StatusPending {
		if err := m.store.SetStatus(ctx, id, revision.StatusInReview); err != nil {
			slog.Warn("Could not promote revision to in_review", "id", id, "err", err)
		} else {
			record.Status = revision.StatusInReview
		}
	}

	form := forms.Resolve(decodePayload(record.JSONOriginal, id, "json_original"), decodePayload(record.JSONFinal, id, "json_final"))

	s := &session{
		id:     id,
		record: record,
		form:   form,
	}
	saverOpts := []autosave.Options{autosave.WithDebounce(m.debounce)}
	if m.clock != nil {
		saverOpts = append(saverOpts, autosave.WithClock(m.clock))
	}
	s.saver = autosave.New(m.persistFunc(id), saverOpts...)
	s.saver.Observe(form)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		// Lost the race against a concurrent Open of the same revision.
		s.saver.Close()
		return existing.view(), nil
	}
	m.sessions[id] = s
	m.openSessions.Inc()
	return s.view(), nil
}

// Apply overlays field changes onto the session's form data. Section values
// merge one level deep, everything else is replaced, mirroring the resolver.
func (m *Manager) Apply(id string, changes map[string]any) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	s.form = forms.Apply(s.form, changes)
	s.saver.Observe(s.form)
	s.mu.Unlock()

	return s.view(), nil
}

// SaveNow flushes the session's form data immediately, bypassing the debounce.
func (m *Manager) SaveNow(ctx context.Context, id string) (View, error) {
	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}
	if err := s.saver.SaveNow(ctx); err != nil {
		return s.view(), err
	}
	return s.view(), nil
}

// Transition applies a status change through the gate. The status must be one
// of the lifecycle values; ordering is not enforced.
func (m *Manager) Transition(ctx context.Context, id string, status revision.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", revision.ErrInvalidStatus, status)
	}

	if err := m.store.SetStatus(ctx, id, status); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.mu.Lock()
		s.record.Status = status
		s.mu.Unlock()
	}
	return nil
}

// Finish writes the session's form data and the given status together. Used
// when the analyst explicitly completes a revision.
func (m *Manager) Finish(ctx context.Context, id string, status revision.Status) (View, error) {
	if !status.Valid() {
		return View{}, fmt.Errorf("%w: %q", revision.ErrInvalidStatus, status)
	}

	s, err := m.session(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	payload, err := json.Marshal(s.form)
	s.mu.Unlock()
	if err != nil {
		return View{}, fmt.Errorf("could not marshal form data: %v", err)
	}

	if err := m.store.Update(ctx, id, payload, status); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	s.record.Status = status
	s.record.JSONFinal = payload
	s.mu.Unlock()
	return s.view(), nil
}

// Close tears down the edit session, cancelling any pending autosave.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.openSessions.Dec()
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	s.saver.Close()
	return nil
}

// CloseAll tears down every open session. Used on service shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.saver.Close()
		m.openSessions.Dec()
	}
}

func (m *Manager) session(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return s, nil
}

func (m *Manager) persistFunc(id string) autosave.PersistFunc {
	return func(ctx context.Context, value any) error {
		form, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("unexpected autosave value of type %T", value)
		}
		payload, err := json.Marshal(form)
		if err != nil {
			return fmt.Errorf("could not marshal form data: %v", err)
		}
		if err := m.store.SaveDraft(ctx, id, payload); err != nil {
			m.autosaveFailures.Inc()
			return err
		}
		return nil
	}
}

func (s *session) view() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Record: s.record,
		Form:   s.form,
		Saving: s.saver.Saving(),
		Saved:  s.saver.Saved(),
		Err:    s.saver.Err(),
	}
}

// decodePayload tolerates malformed stored payloads: they are logged and
// treated as absent so the form still resolves to the full schema.
func decodePayload(raw json.RawMessage, id, field string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Warn("Ignoring malformed stored payload", "id", id, "field", field, "err", err)
		return nil
	}
	return payload
}
