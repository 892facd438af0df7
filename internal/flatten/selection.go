package flatten

import "github.com/Rishwanth-M/finboard/api"

// Add appends f to sel unless a field with the same path is already selected.
// The input slice is never modified.
func Add(sel []api.Field, f api.Field) []api.Field {
	if Contains(sel, f.Path) {
		return sel
	}
	out := make([]api.Field, len(sel), len(sel)+1)
	copy(out, sel)
	return append(out, f)
}

// Remove drops the field with the given path.
func Remove(sel []api.Field, path string) []api.Field {
	out := make([]api.Field, 0, len(sel))
	for _, f := range sel {
		if f.Path != path {
			out = append(out, f)
		}
	}
	return out
}

// Contains reports whether a field with path is selected.
func Contains(sel []api.Field, path string) bool {
	for _, f := range sel {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Dedupe keeps the first occurrence of every path, preserving order.
func Dedupe(fields []api.Field) []api.Field {
	var out []api.Field
	for _, f := range fields {
		out = Add(out, f)
	}
	return out
}
