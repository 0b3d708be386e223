package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvivas2/formTelecom/internal/revision"
	"github.com/lvivas2/formTelecom/internal/store"
	"github.com/lvivas2/formTelecom/internal/testutils"
)

func TestRevisionLifecycleIntegration(t *testing.T) {
	t.Parallel()

	pc := testutils.StartPostgresContainer(t)
	t.Cleanup(func() {
		if err := pc.Stop(context.Background()); err != nil {
			t.Logf("Teardown: failed to stop container: %v", err)
		}
	})
	require.NoError(t, pc.IsReady(t, 5*time.Second, 10), "Setup: database was not ready in time")
	testutils.ApplyMigrations(t, pc.DSN, filepath.Join(testutils.ModuleRoot(), "migrations"))

	port, err := strconv.Atoi(pc.Port)
	require.NoError(t, err, "Setup: invalid mapped port")

	db, err := store.Connect(t.Context(), store.Config{
		Host:     pc.Host,
		Port:     port,
		User:     pc.User,
		Password: pc.Password,
		DBName:   pc.Name,
		SSLMode:  "disable",
	})
	require.NoError(t, err, "Setup: failed to connect to database")
	t.Cleanup(func() { require.NoError(t, db.Close(), "Teardown: failed to close database") })

	original := json.RawMessage(`{"fields_ok":{"dominio":"ABC123","km_actual":120000}}`)

	id, err := db.Insert(t.Context(), original)
	require.NoError(t, err, "Insert error")
	require.NotEmpty(t, id)

	r, err := db.Get(t.Context(), id)
	require.NoError(t, err, "Get error")
	assert.Equal(t, id, r.ID)
	assert.Equal(t, revision.StatusPending, r.Status, "New revisions start pending")
	assert.JSONEq(t, string(original), string(r.JSONOriginal))
	assert.Nil(t, r.JSONFinal, "json_final starts empty")
	assert.Nil(t, r.UpdatedAt, "updated_at starts empty")

	summaries, err := db.List(t.Context())
	require.NoError(t, err, "List error")
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)

	summaries, err = db.List(t.Context(), revision.StatusCompleted)
	require.NoError(t, err, "Filtered List error")
	assert.Empty(t, summaries, "No completed revisions yet")

	// Draft saves must not touch the status.
	draft := json.RawMessage(`{"dominio":"ABC123","km_actual":120500}`)
	require.NoError(t, db.SaveDraft(t.Context(), id, draft), "SaveDraft error")

	r, err = db.Get(t.Context(), id)
	require.NoError(t, err, "Get after SaveDraft error")
	assert.Equal(t, revision.StatusPending, r.Status, "SaveDraft must leave the status untouched")
	assert.JSONEq(t, string(draft), string(r.JSONFinal))
	assert.NotNil(t, r.UpdatedAt, "SaveDraft must bump updated_at")

	// Status changes must not touch the form data.
	require.NoError(t, db.SetStatus(t.Context(), id, revision.StatusInReview), "SetStatus error")

	r, err = db.Get(t.Context(), id)
	require.NoError(t, err, "Get after SetStatus error")
	assert.Equal(t, revision.StatusInReview, r.Status)
	assert.JSONEq(t, string(draft), string(r.JSONFinal), "SetStatus must leave json_final untouched")

	// Finishing writes both together.
	final := json.RawMessage(`{"dominio":"ABC123","km_actual":120500,"guarda":"norte"}`)
	require.NoError(t, db.Update(t.Context(), id, final, revision.StatusCompleted), "Update error")

	r, err = db.Get(t.Context(), id)
	require.NoError(t, err, "Get after Update error")
	assert.Equal(t, revision.StatusCompleted, r.Status)
	assert.JSONEq(t, string(final), string(r.JSONFinal))

	summaries, err = db.List(t.Context(), revision.StatusCompleted)
	require.NoError(t, err, "Filtered List after Update error")
	require.Len(t, summaries, 1)

	// Unknown ids surface ErrNotFound on every path.
	missing := "00000000-0000-0000-0000-000000000000"
	_, err = db.Get(t.Context(), missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, db.SaveDraft(t.Context(), missing, draft), store.ErrNotFound)
	assert.ErrorIs(t, db.SetStatus(t.Context(), missing, revision.StatusInReview), store.ErrNotFound)
}

func TestListOrdersNewestFirstIntegration(t *testing.T) {
	t.Parallel()

	pc := testutils.StartPostgresContainer(t)
	t.Cleanup(func() {
		if err := pc.Stop(context.Background()); err != nil {
			t.Logf("Teardown: failed to stop container: %v", err)
		}
	})
	require.NoError(t, pc.IsReady(t, 5*time.Second, 10), "Setup: database was not ready in time")
	testutils.ApplyMigrations(t, pc.DSN, filepath.Join(testutils.ModuleRoot(), "migrations"))

	port, err := strconv.Atoi(pc.Port)
	require.NoError(t, err, "Setup: invalid mapped port")

	db, err := store.Connect(t.Context(), store.Config{
		Host:     pc.Host,
		Port:     port,
		User:     pc.User,
		Password: pc.Password,
		DBName:   pc.Name,
		SSLMode:  "disable",
	})
	require.NoError(t, err, "Setup: failed to connect to database")
	t.Cleanup(func() { require.NoError(t, db.Close(), "Teardown: failed to close database") })

	first, err := db.Insert(t.Context(), json.RawMessage(`{"dominio":"AAA111"}`))
	require.NoError(t, err, "Insert error")
	time.Sleep(10 * time.Millisecond)
	second, err := db.Insert(t.Context(), json.RawMessage(`{"dominio":"BBB222"}`))
	require.NoError(t, err, "Insert error")

	summaries, err := db.List(t.Context())
	require.NoError(t, err, "List error")
	require.Len(t, summaries, 2)
	assert.Equal(t, second, summaries[0].ID, "Newest revision comes first")
	assert.Equal(t, first, summaries[1].ID)
}
