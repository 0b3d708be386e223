// Package store provides the PostgreSQL persistence layer for form revisions.
// It handles the connection pool and exposes the independent write paths used
// by the intake, autosave, and status flows.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lvivas2/formTelecom/internal/revision"
)

// ErrNotFound is returned when a revision row does not exist.
var ErrNotFound = errors.New("revision not found")

// Config holds the configuration for connecting to the PostgreSQL database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DBPool is the subset of the pgx pool used by the Manager.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Manager manages the PostgreSQL database connection pool.
type Manager struct {
	dbpool DBPool
}

type options struct {
	newPool func(ctx context.Context, dsn string) (DBPool, error)
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithNewPool overrides the pool constructor. Tests use it to inject a mock pool.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) { o.newPool = newPool }
}

// Connect creates a store manager with a PostgreSQL connection pool using the provided configuration.
// Note: The connection is validated with a ping, but it is not maintained.
func Connect(ctx context.Context, cfg Config, args ...Options) (*Manager, error) {
	opts := options{
		newPool: func(ctx context.Context, dsn string) (DBPool, error) {
			return pgxpool.New(ctx, dsn)
		},
	}

	for _, opt := range args {
		opt(&opts)
	}

	dbpool, err := opts.newPool(ctx, cfg.URI("postgres"))
	if err != nil {
		return nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	slog.Debug("Testing database connection", "host", cfg.Host, "port", cfg.Port)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	slog.Info("Successfully pinged PostgreSQL database", "host", cfg.Host, "port", cfg.Port)
	return &Manager{dbpool: dbpool}, nil
}

// List returns the revisions with one of the given statuses, newest first.
// With no statuses it returns the whole lifecycle.
func (db Manager) List(ctx context.Context, statuses ...revision.Status) ([]revision.Summary, error) {
	if db.dbpool == nil {
		return nil, errors.New("database not initialized")
	}
	if len(statuses) == 0 {
		statuses = revision.AllStatuses()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := db.dbpool.Query(ctx,
		`SELECT id, status, created_at
		 FROM form_revision
		 WHERE status = ANY($1)
		 ORDER BY created_at DESC`,
		statusStrings(statuses),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %v", err)
	}
	defer rows.Close()

	var summaries []revision.Summary
	for rows.Next() {
		var s revision.Summary
		if err := rows.Scan(&s.ID, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision row: %v", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read revision rows: %v", err)
	}
	return summaries, nil
}

// Get fetches one revision row by id.
func (db Manager) Get(ctx context.Context, id string) (revision.Record, error) {
	if db.dbpool == nil {
		return revision.Record{}, errors.New("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var r revision.Record
	err := db.dbpool.QueryRow(ctx,
		`SELECT id, status, json_original, json_final, created_at, updated_at
		 FROM form_revision
		 WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Status, &r.JSONOriginal, &r.JSONFinal, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return revision.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return revision.Record{}, fmt.Errorf("failed to fetch revision %s: %v", id, err)
	}
	return r, nil
}

// Insert stores a new pending revision with the given original submission
// payload and returns its id.
func (db Manager) Insert(ctx context.Context, jsonOriginal json.RawMessage) (string, error) {
	if db.dbpool == nil {
		return "", errors.New("database not initialized")
	}

	id := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := db.dbpool.Exec(ctx,
		`INSERT INTO form_revision (id, status, json_original, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		id,
		revision.StatusPending,
		jsonOriginal,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert revision: %v", err)
	}
	return id, nil
}

// SaveDraft updates json_final and updated_at of a revision, leaving the
// status untouched. This is the autosave write path.
func (db Manager) SaveDraft(ctx context.Context, id string, jsonFinal json.RawMessage) error {
	return db.update(ctx, id,
		`UPDATE form_revision
		 SET json_final = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, jsonFinal)
}

// SetStatus updates status and updated_at of a revision, leaving json_final
// untouched. This is the status transition write path.
func (db Manager) SetStatus(ctx context.Context, id string, status revision.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", revision.ErrInvalidStatus, status)
	}
	return db.update(ctx, id,
		`UPDATE form_revision
		 SET status = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, status)
}

// Update writes json_final and status together with updated_at. Used when the
// analyst explicitly finishes a revision.
func (db Manager) Update(ctx context.Context, id string, jsonFinal json.RawMessage, status revision.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", revision.ErrInvalidStatus, status)
	}
	return db.update(ctx, id,
		`UPDATE form_revision
		 SET json_final = $2, status = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, jsonFinal, status)
}

func (db Manager) update(ctx context.Context, id, query string, args ...any) error {
	if db.dbpool == nil {
		return errors.New("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := db.dbpool.Exec(ctx, query, args...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("update canceled: %v", err)
		}
		return fmt.Errorf("failed to update revision %s: %v", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection.
//
// If the connection is already closed, it does nothing.
// If the connection does not close within 10 seconds, it returns an error.
func (db *Manager) Close() error {
	if db.dbpool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		db.dbpool.Close()
	}()

	select {
	case <-done:
		db.dbpool = nil
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}

// URI is a helper method that returns a connection URI for PostgreSQL.
// It does not check the validity of the configuration values.
//
// Security warning: the returned string may include credentials.
func (c Config) URI(scheme string) string {
	host := c.Host
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}

	u := &url.URL{
		Scheme: scheme,
		User:   user,
		Host:   host,
		Path:   c.DBName,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func statusStrings(statuses []revision.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
