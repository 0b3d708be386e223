package forms

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Legacy submissions are inconsistent at the leaf level: a documentation
// field may arrive as a bare boolean, a "si"/"no" string, or a
// {tiene, vencimiento} object depending on the producer version. These
// helpers convert the legacy shapes to one canonical form at the boundary
// so the rest of the service never branches on runtime types.

// DocItem is the canonical shape of a safety documentation leaf.
type DocItem struct {
	Tiene       bool    `json:"tiene" mapstructure:"tiene"`
	Vencimiento *string `json:"vencimiento,omitempty" mapstructure:"vencimiento"`
}

// EquipItem is the canonical shape of an equipment leaf from the general
// condition section, such as cupula or equipamiento_hidraulico.
type EquipItem struct {
	Tiene  bool    `json:"tiene" mapstructure:"tiene"`
	Estado *string `json:"estado,omitempty" mapstructure:"estado"`
}

// NormalizeDocItem converts a legacy documentation value to its canonical
// shape. Booleans and strings become a DocItem without expiry; objects are
// decoded field by field. A nil or undecodable value yields the zero item.
func NormalizeDocItem(value any) DocItem {
	switch v := value.(type) {
	case nil:
		return DocItem{}
	case bool:
		return DocItem{Tiene: v}
	case string:
		return DocItem{Tiene: NormalizeBool(v)}
	case map[string]any:
		var item DocItem
		if err := decodeLoose(v, &item); err != nil {
			return DocItem{}
		}
		if item.Vencimiento != nil {
			d := DateForInput(*item.Vencimiento)
			item.Vencimiento = &d
		}
		return item
	default:
		return DocItem{}
	}
}

// NormalizeEquipItem converts a legacy equipment value to its canonical shape.
func NormalizeEquipItem(value any) EquipItem {
	switch v := value.(type) {
	case nil:
		return EquipItem{}
	case bool:
		return EquipItem{Tiene: v}
	case string:
		return EquipItem{Tiene: NormalizeBool(v)}
	case map[string]any:
		var item EquipItem
		if err := decodeLoose(v, &item); err != nil {
			return EquipItem{}
		}
		return item
	default:
		return EquipItem{}
	}
}

// normalizeLegacy canonicalizes the duck-typed sections of a payload before
// it is merged: safety documentation leaves become DocItem-shaped objects and
// general condition leaves become EquipItem-shaped objects. Other keys pass
// through untouched, and the input is not mutated.
func normalizeLegacy(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	if section, ok := out[KeyDocumentacionSeguridad].(map[string]any); ok {
		canonical := make(map[string]any, len(section))
		for k, v := range section {
			canonical[k] = NormalizeDocItem(v).asMap()
		}
		out[KeyDocumentacionSeguridad] = canonical
	}
	if section, ok := out[KeyEstadoGeneral].(map[string]any); ok {
		canonical := make(map[string]any, len(section))
		for k, v := range section {
			canonical[k] = NormalizeEquipItem(v).asMap()
		}
		out[KeyEstadoGeneral] = canonical
	}
	return out
}

func (d DocItem) asMap() map[string]any {
	m := map[string]any{"tiene": d.Tiene}
	if d.Vencimiento != nil {
		m["vencimiento"] = *d.Vencimiento
	}
	return m
}

func (e EquipItem) asMap() map[string]any {
	m := map[string]any{"tiene": e.Tiene}
	if e.Estado != nil {
		m["estado"] = *e.Estado
	}
	return m
}

func decodeLoose(src map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("could not build decoder: %w", err)
	}
	return dec.Decode(src)
}

// NormalizeBool interprets the boolean spellings seen across producer
// versions. Anything else is false.
func NormalizeBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "si", "sí", "yes":
			return true
		}
	}
	return false
}

// NormalizeString converts a leaf to a string, mapping nil to the empty string.
func NormalizeString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DateForInput converts a stored DD-MM-YYYY date to YYYY-MM-DD.
// Dates already in ISO form and unrecognized values pass through unchanged.
func DateForInput(date string) string {
	if date == "" || isoDateRe.MatchString(date) {
		return date
	}
	parts := strings.Split(date, "-")
	if len(parts) == 3 && len(parts[0]) == 2 {
		return parts[2] + "-" + parts[1] + "-" + parts[0]
	}
	return date
}

// DateForStorage converts a YYYY-MM-DD date back to the stored DD-MM-YYYY form.
func DateForStorage(date string) string {
	if date == "" {
		return ""
	}
	parts := strings.Split(date, "-")
	if len(parts) == 3 {
		return parts[2] + "-" + parts[1] + "-" + parts[0]
	}
	return date
}
