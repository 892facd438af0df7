// Package flatten discovers the addressable leaf fields of a JSON document.
package flatten

import (
	"strings"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
)

// Flatten returns the leaf fields of v in document order.
//
// Objects are expanded with dot-joined paths. Arrays contribute the schema of
// their first element only, and the array's own key is not part of the path.
// A bare scalar or null has no path context and yields no fields. Repeated
// paths are kept; callers de-duplicate on selection.
func Flatten(v any) []api.Field {
	return walk(v, "")
}

func walk(v any, prefix string) []api.Field {
	if items, ok := v.([]any); ok {
		return walkArray(items, prefix)
	}
	if !jsondoc.IsObject(v) {
		return nil
	}

	var fields []api.Field
	for _, e := range jsondoc.Entries(v) {
		path := e.Key
		if prefix != "" {
			path = prefix + "." + e.Key
		}
		switch child := e.Value.(type) {
		case []any:
			fields = append(fields, walkArray(child, prefix)...)
		default:
			if jsondoc.IsObject(child) {
				fields = append(fields, walk(child, path)...)
				continue
			}
			if path == "" {
				continue
			}
			fields = append(fields, api.Field{
				Path:   path,
				Type:   jsondoc.TypeOf(child),
				Sample: jsondoc.Sample(child),
			})
		}
	}
	return fields
}

// walkArray inspects only the first row; rows are assumed homogeneous.
func walkArray(items []any, prefix string) []api.Field {
	if len(items) == 0 {
		return nil
	}
	switch first := items[0].(type) {
	case []any:
		return walkArray(first, prefix)
	default:
		if jsondoc.IsObject(first) {
			return walk(first, prefix)
		}
	}
	return nil
}

// Filter keeps the fields whose path contains query, ignoring case.
// An empty query keeps everything.
func Filter(fields []api.Field, query string) []api.Field {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]api.Field, 0, len(fields))
	for _, f := range fields {
		if q == "" || strings.Contains(strings.ToLower(f.Path), q) {
			out = append(out, f)
		}
	}
	return out
}
