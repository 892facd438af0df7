package api

import "time"

// SchemaVersion is the version written into every dashboard export.
const SchemaVersion = 1

// WidgetType selects how a widget binds its fields to fetched data.
type WidgetType string

const (
	WidgetCard  WidgetType = "card"
	WidgetTable WidgetType = "table"
	WidgetChart WidgetType = "chart"
)

// Valid reports whether t is one of the known widget types.
func (t WidgetType) Valid() bool {
	switch t {
	case WidgetCard, WidgetTable, WidgetChart:
		return true
	}
	return false
}

// Field is one addressable leaf discovered in a sample response.
// Two fields are the same field iff their paths are equal.
type Field struct {
	// Path is the dot-joined address into the source document (e.g. "quote.price").
	Path string `json:"path"`
	// Type is the primitive type observed at discovery time ("string", "number", ...).
	Type string `json:"type"`
	// Sample is the display form of the value observed at discovery time.
	Sample string `json:"sample"`
}

// Widget is the persisted configuration of a single dashboard widget.
type Widget struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// APIURL is the JSON endpoint the widget polls.
	APIURL string `json:"apiUrl"`
	// RefreshInterval is the polling period in seconds. It doubles as the cache TTL.
	RefreshInterval int        `json:"refreshInterval"`
	Type            WidgetType `json:"widgetType"`
	// SelectedFields is ordered; the order is the display order.
	SelectedFields []Field `json:"selectedFields"`
	// RefreshNonce changes whenever the user asks for a fresh binding.
	RefreshNonce int64 `json:"refreshNonce"`
	// RowsSelector is an optional JSONPath picking table rows (e.g. "$.data[*]").
	RowsSelector string `json:"rowsSelector,omitempty"`
	// Format is the value format applied to displayed values (currency, percentage, number).
	Format string `json:"format,omitempty"`
}

// Interval returns the refresh interval as a duration.
func (w Widget) Interval() time.Duration {
	return time.Duration(w.RefreshInterval) * time.Second
}

// Dashboard is the export envelope for a widget list.
type Dashboard struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Widgets    []Widget  `json:"widgets"`
}
