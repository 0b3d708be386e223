package forms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lvivas2/formTelecom/internal/forms"
)

func TestNormalizeDocItem(t *testing.T) {
	t.Parallel()

	expiry := "2026-03-01"

	tests := map[string]struct {
		value any
		want  forms.DocItem
	}{
		"Nil":          {value: nil, want: forms.DocItem{}},
		"Bool true":    {value: true, want: forms.DocItem{Tiene: true}},
		"Bool false":   {value: false, want: forms.DocItem{}},
		"String si":    {value: "si", want: forms.DocItem{Tiene: true}},
		"String no":    {value: "no", want: forms.DocItem{}},
		"String yes":   {value: "yes", want: forms.DocItem{Tiene: true}},
		"Number noise": {value: float64(1), want: forms.DocItem{}},
		"Object with stored-format expiry": {
			value: map[string]any{"tiene": true, "vencimiento": "01-03-2026"},
			want:  forms.DocItem{Tiene: true, Vencimiento: &expiry},
		},
		"Object with string tiene": {
			value: map[string]any{"tiene": "true"},
			want:  forms.DocItem{Tiene: true},
		},
		"Object without expiry": {
			value: map[string]any{"tiene": false},
			want:  forms.DocItem{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, forms.NormalizeDocItem(tc.value))
		})
	}
}

func TestNormalizeEquipItem(t *testing.T) {
	t.Parallel()

	estado := "b"

	tests := map[string]struct {
		value any
		want  forms.EquipItem
	}{
		"Nil":  {value: nil, want: forms.EquipItem{}},
		"Bool": {value: true, want: forms.EquipItem{Tiene: true}},
		"Object with estado": {
			value: map[string]any{"tiene": true, "estado": "b"},
			want:  forms.EquipItem{Tiene: true, Estado: &estado},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, forms.NormalizeEquipItem(tc.value))
		})
	}
}

func TestDateConversions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		date        string
		wantInput   string
		wantStorage string
	}{
		"Stored format": {date: "25-12-2025", wantInput: "2025-12-25", wantStorage: "2025-12-25"},
		"ISO format":    {date: "2025-12-25", wantInput: "2025-12-25", wantStorage: "25-12-2025"},
		"Empty":         {date: "", wantInput: "", wantStorage: ""},
		"Garbage":       {date: "navidad", wantInput: "navidad", wantStorage: "navidad"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.wantInput, forms.DateForInput(tc.date), "DateForInput")
			assert.Equal(t, tc.wantStorage, forms.DateForStorage(tc.date), "DateForStorage")
		})
	}
}

func TestNormalizeBool(t *testing.T) {
	t.Parallel()

	assert.True(t, forms.NormalizeBool("Sí"))
	assert.True(t, forms.NormalizeBool(true))
	assert.False(t, forms.NormalizeBool("falso"))
	assert.False(t, forms.NormalizeBool(nil))
}

func TestNormalizeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", forms.NormalizeString(nil))
	assert.Equal(t, "abc", forms.NormalizeString("abc"))
	assert.Equal(t, "42", forms.NormalizeString(42))
}
