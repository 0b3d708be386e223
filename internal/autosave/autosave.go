// Package autosave persists a mutable value automatically, debouncing writes
// and exposing save-state feedback.
//
// The coordinator is an explicit state machine over {idle, pending, saving,
// saved, errored}. A value change arms a single debounce timer; only the most
// recent change within the window is persisted. Success and failure are shown
// for fixed display windows before clearing. The clock is injectable so the
// windows are testable without wall-clock sleeps.
package autosave

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// State is the save-cycle state of a coordinator.
type State int

// Save-cycle states.
const (
	StateIdle State = iota
	StatePending
	StateSaving
	StateSaved
	StateErrored
)

// PersistFunc writes the value to the backing store.
type PersistFunc func(ctx context.Context, value any) error

// Timer is a cancellable timer handle.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The default implementation uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Coordinator debounces persistence of an observed value.
type Coordinator struct {
	persist PersistFunc
	clock   Clock

	debounce    time.Duration
	savedWindow time.Duration
	errorWindow time.Duration

	mu           sync.Mutex
	enabled      bool
	closed       bool
	haveBaseline bool
	baseline     any
	current      any

	state        State
	err          error
	debounceTmr  Timer
	displayTmr   Timer
	displayEpoch uint64
}

type options struct {
	debounce    time.Duration
	savedWindow time.Duration
	errorWindow time.Duration
	clock       Clock
}

// Options represents an optional function to override Coordinator default values.
type Options func(*options)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Options {
	return func(o *options) { o.debounce = d }
}

// WithClock overrides the clock used for scheduling.
func WithClock(c Clock) Options {
	return func(o *options) { o.clock = c }
}

// New creates a coordinator around the given persistence function.
func New(persist PersistFunc, args ...Options) *Coordinator {
	opts := options{
		debounce:    500 * time.Millisecond,
		savedWindow: 2 * time.Second,
		errorWindow: 5 * time.Second,
		clock:       realClock{},
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Coordinator{
		persist:     persist,
		clock:       opts.clock,
		debounce:    opts.debounce,
		savedWindow: opts.savedWindow,
		errorWindow: opts.errorWindow,
		enabled:     true,
	}
}

// Observe records the latest value. The first observation becomes the
// baseline without persisting. Later observations that differ from the
// baseline re-arm the debounce timer, cancelling any pending one.
func (c *Coordinator) Observe(value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.current = value
	if !c.haveBaseline {
		c.haveBaseline = true
		c.baseline = value
		return
	}

	if reflect.DeepEqual(c.baseline, value) {
		// An edit that reverts to the baseline cancels the pending save.
		if c.debounceTmr != nil {
			c.debounceTmr.Stop()
			c.debounceTmr = nil
			c.state = StateIdle
		}
		return
	}
	if !c.enabled {
		return
	}

	if c.debounceTmr != nil {
		c.debounceTmr.Stop()
	}
	c.state = StatePending
	c.debounceTmr = c.clock.AfterFunc(c.debounce, c.fire)
}

// SaveNow bypasses the debounce timer and persists the current value
// immediately, following the same saving/saved/error transitions.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || !c.enabled {
		c.mu.Unlock()
		return nil
	}
	if c.debounceTmr != nil {
		c.debounceTmr.Stop()
		c.debounceTmr = nil
	}
	c.mu.Unlock()

	return c.save(ctx)
}

func (c *Coordinator) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debounceTmr = nil
	c.mu.Unlock()

	// Timer-triggered saves have no caller context.
	_ = c.save(context.Background())
}

func (c *Coordinator) save(ctx context.Context) error {
	c.mu.Lock()
	value := c.current
	c.state = StateSaving
	c.err = nil
	c.stopDisplayLocked()
	c.mu.Unlock()

	err := c.persist(ctx, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateErrored
		c.err = err
		c.armDisplayLocked(c.errorWindow)
		return err
	}

	// The baseline only advances on success so a failed change stays
	// eligible for the next save.
	c.baseline = value
	c.state = StateSaved
	c.armDisplayLocked(c.savedWindow)
	return nil
}

// armDisplayLocked schedules the auto-clear of the saved/errored display
// state. The epoch guards against a stale timer clearing a newer cycle.
func (c *Coordinator) armDisplayLocked(window time.Duration) {
	c.displayEpoch++
	epoch := c.displayEpoch
	c.displayTmr = c.clock.AfterFunc(window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.displayEpoch != epoch {
			return
		}
		c.state = StateIdle
		c.err = nil
	})
}

func (c *Coordinator) stopDisplayLocked() {
	if c.displayTmr != nil {
		c.displayTmr.Stop()
		c.displayTmr = nil
	}
	c.displayEpoch++
}

// SetEnabled toggles debounce scheduling. Disabling does not cancel an
// in-flight persist call, but it does drop a pending timer.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = enabled
	if !enabled && c.debounceTmr != nil {
		c.debounceTmr.Stop()
		c.debounceTmr = nil
		c.state = StateIdle
	}
}

// State returns the current save-cycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Saving reports whether a persist call is outstanding.
func (c *Coordinator) Saving() bool {
	return c.State() == StateSaving
}

// Saved reports whether the last save succeeded within its display window.
func (c *Coordinator) Saved() bool {
	return c.State() == StateSaved
}

// Err returns the last save error while within its display window.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close cancels any pending timer so no write can fire after teardown.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.debounceTmr != nil {
		c.debounceTmr.Stop()
		c.debounceTmr = nil
	}
	c.stopDisplayLocked()
}
