package revision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvivas2/formTelecom/internal/revision"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value string

		want    revision.Status
		wantErr bool
	}{
		"Pending":    {value: "pending", want: revision.StatusPending},
		"In review":  {value: "in_review", want: revision.StatusInReview},
		"Completed":  {value: "completed", want: revision.StatusCompleted},
		"Processed":  {value: "processed", want: revision.StatusProcessed},
		"Archived":   {value: "archived", wantErr: true},
		"Empty":      {value: "", wantErr: true},
		"Uppercase":  {value: "PENDING", wantErr: true},
		"Whitespace": {value: " pending", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := revision.ParseStatus(tc.value)
			if tc.wantErr {
				require.Error(t, err, "ParseStatus should reject %q", tc.value)
				assert.ErrorIs(t, err, revision.ErrInvalidStatus)
				return
			}
			require.NoError(t, err, "ParseStatus should accept %q", tc.value)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStatusLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Pendiente", revision.StatusPending.Label())
	assert.Equal(t, "En Revisión", revision.StatusInReview.Label())
	assert.Equal(t, "Completado", revision.StatusCompleted.Label())
	assert.Equal(t, "Procesado", revision.StatusProcessed.Label())
	assert.Equal(t, "archived", revision.Status("archived").Label(), "Unknown statuses fall back to the raw value")
}

func TestAllStatuses(t *testing.T) {
	t.Parallel()

	statuses := revision.AllStatuses()
	require.Len(t, statuses, 4)
	for _, s := range statuses {
		assert.True(t, s.Valid(), "AllStatuses returned an invalid status %q", s)
	}
}
