// Package view binds a widget's selected fields to a fetched document.
//
// It produces display-ready data (cells, table pages, chart points); drawing
// them is left to the client.
package view

import (
	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/pathres"
)

// Cell is one bound field value.
type Cell struct {
	Path    string `json:"path"`
	Label   string `json:"label"`
	Value   any    `json:"value"`
	Found   bool   `json:"found"`
	Display string `json:"display"`
}

// Query carries per-request view state.
type Query struct {
	Search   string
	Page     int
	Interval Interval
}

// View is the bound result for one widget.
type View struct {
	WidgetID string         `json:"widgetId"`
	Type     api.WidgetType `json:"widgetType"`
	Cells    []Cell         `json:"cells,omitempty"`
	Table    *TablePage     `json:"table,omitempty"`
	Series   []Point        `json:"series,omitempty"`
	// Error is the user-visible status when the data could not be bound.
	Error string `json:"error,omitempty"`
	// Soft marks an Error that came from a rate-limit-shaped success.
	Soft bool `json:"soft,omitempty"`
}

// Build binds doc to w. A document carrying an API throttling notice is
// reported as an error instead of being bound.
func Build(w api.Widget, doc any, q Query) View {
	v := View{WidgetID: w.ID, Type: w.Type}
	if _, soft := fetch.SoftError(doc); soft {
		v.Error = "API rate limit reached"
		v.Soft = true
		return v
	}

	switch w.Type {
	case api.WidgetTable:
		page, err := Table(w, doc, TableQuery{Search: q.Search, Page: q.Page})
		if err != nil {
			v.Error = err.Error()
			return v
		}
		if page.Total == 0 && q.Search == "" {
			v.Error = "No data available"
		}
		v.Table = &page
	case api.WidgetChart:
		points, err := Series(doc, q.Interval)
		if err != nil {
			v.Error = err.Error()
			return v
		}
		v.Series = points
	default:
		v.Cells = Card(w, doc)
	}
	return v
}

// Failed is the view shown when the fetch itself failed.
func Failed(w api.Widget, err error) View {
	return View{WidgetID: w.ID, Type: w.Type, Error: fetch.Status(err)}
}

// Card resolves every selected field against doc, in display order.
func Card(w api.Widget, doc any) []Cell {
	cells := make([]Cell, 0, len(w.SelectedFields))
	for _, f := range w.SelectedFields {
		cells = append(cells, bind(doc, f.Path, w.Format))
	}
	return cells
}

func bind(doc any, path, format string) Cell {
	raw, found := pathres.Resolve(doc, path)
	return Cell{
		Path:    path,
		Label:   pathres.Label(path),
		Value:   raw,
		Found:   found,
		Display: Format(raw, format),
	}
}

// CacheKey is the response cache key a widget fetches under. Charts cache
// each interval separately.
func CacheKey(w api.Widget, interval Interval) string {
	if w.Type == api.WidgetChart {
		return w.ID + "-" + string(interval.orDefault())
	}
	return w.ID
}

// CacheKeys lists every key a widget may occupy in the cache.
func CacheKeys(w api.Widget) []string {
	if w.Type != api.WidgetChart {
		return []string{w.ID}
	}
	keys := make([]string, 0, len(Intervals))
	for _, i := range Intervals {
		keys = append(keys, CacheKey(w, i))
	}
	return keys
}
