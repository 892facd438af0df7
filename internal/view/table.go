package view

import (
	"strings"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"github.com/Rishwanth-M/finboard/internal/pathres"
)

// PageSize is the number of rows per table page.
const PageSize = 5

// TableQuery selects the filtered page to show.
type TableQuery struct {
	Search string
	Page   int // 1-based; clamped into range
}

// TablePage is one page of bound rows.
type TablePage struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
	// Total counts the rows left after the search filter.
	Total int `json:"total"`
}

// Table binds the widget's fields to every row of doc, filters rows by the
// search text and returns the requested page.
func Table(w api.Widget, doc any, q TableQuery) (TablePage, error) {
	rows, err := pathres.Rows(doc, w.RowsSelector)
	if err != nil {
		return TablePage{}, err
	}

	search := strings.ToLower(q.Search)
	var matched []any
	for _, row := range rows {
		if search == "" || rowMatches(row, w.SelectedFields, search) {
			matched = append(matched, row)
		}
	}

	page := TablePage{
		Headers: make([]string, 0, len(w.SelectedFields)),
		Rows:    [][]Cell{},
		Total:   len(matched),
		Pages:   (len(matched) + PageSize - 1) / PageSize,
	}
	for _, f := range w.SelectedFields {
		page.Headers = append(page.Headers, pathres.Label(f.Path))
	}

	page.Page = q.Page
	if page.Page > page.Pages {
		page.Page = page.Pages
	}
	if page.Page < 1 {
		page.Page = 1
	}

	start := (page.Page - 1) * PageSize
	end := min(start+PageSize, len(matched))
	for _, row := range matched[start:end] {
		cells := make([]Cell, 0, len(w.SelectedFields))
		for _, f := range w.SelectedFields {
			cells = append(cells, bind(row, f.Path, w.Format))
		}
		page.Rows = append(page.Rows, cells)
	}
	return page, nil
}

// rowMatches reports whether any selected field's raw value contains search.
func rowMatches(row any, fields []api.Field, search string) bool {
	for _, f := range fields {
		raw, _ := pathres.Resolve(row, f.Path)
		if raw == nil {
			continue
		}
		if strings.Contains(strings.ToLower(jsondoc.Sample(raw)), search) {
			return true
		}
	}
	return false
}
