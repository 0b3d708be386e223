package forms

// Resolve reduces the original submission payload and the analyst's edits
// into one object exposing the full form schema.
//
// Every fixed top-level key is present in the result, nil when absent from
// both payloads. Each payload has its legacy leaf shapes canonicalized, then
// the original is overlaid first and the final edits second, so the analyst's
// values win ties. At a section key, an incoming object merges one level deep
// into whatever object is already there; any other incoming value (scalar,
// array, nil) replaces the key wholesale. Keys outside the fixed schema are
// carried through unchanged.
//
// Resolve never fails and does not mutate its inputs.
func Resolve(original, finalEdit map[string]any) map[string]any {
	merged := make(map[string]any, len(scalarKeys)+len(sectionKeys))
	for _, k := range SchemaKeys() {
		merged[k] = nil
	}

	overlay(merged, normalizeLegacy(effectivePayload(original)))
	overlay(merged, normalizeLegacy(finalEdit))

	return merged
}

// Apply overlays edit changes onto resolved form data with the same merge
// semantics as Resolve: section objects merge one level deep, anything else
// replaces. It returns a new map; the input form is left untouched.
func Apply(form, changes map[string]any) map[string]any {
	out := make(map[string]any, len(form))
	for k, v := range form {
		out[k] = v
	}
	overlay(out, normalizeLegacy(changes))
	return out
}

// effectivePayload unwraps the fields_ok envelope when present. Upstream
// submissions may nest the validated form fields under fields_ok next to
// pipeline metadata; only the nested object is part of the form.
func effectivePayload(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}
	if nested, ok := original[fieldsOKKey].(map[string]any); ok {
		return nested
	}
	return original
}

func overlay(dst, src map[string]any) {
	for key, value := range src {
		incoming, isObject := value.(map[string]any)
		if !isObject || !IsSection(key) {
			dst[key] = value
			continue
		}

		existing, ok := dst[key].(map[string]any)
		if !ok {
			dst[key] = cloneSection(incoming)
			continue
		}
		dst[key] = mergeSection(existing, incoming)
	}
}

// mergeSection merges one level deep: incoming leaves overwrite, existing
// leaves not present in incoming are preserved. Deeper nesting is replaced,
// not merged.
func mergeSection(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func cloneSection(section map[string]any) map[string]any {
	out := make(map[string]any, len(section))
	for k, v := range section {
		out[k] = v
	}
	return out
}
