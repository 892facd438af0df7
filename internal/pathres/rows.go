package pathres

import (
	"fmt"

	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"github.com/ohler55/ojg/jp"
)

// Rows picks the record list a table binds to.
//
// With a JSONPath selector the matches are the rows; a selector that matches a
// single array yields that array's elements. Without a selector the root is
// used when it is an array, otherwise the first array-valued top-level key in
// document order. A document with no array yields no rows.
func Rows(doc any, selector string) ([]any, error) {
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		results := x.Get(jsondoc.Plain(doc))
		if len(results) == 1 {
			if items, ok := results[0].([]any); ok {
				return items, nil
			}
		}
		return results, nil
	}

	if items, ok := doc.([]any); ok {
		return items, nil
	}
	for _, e := range jsondoc.Entries(doc) {
		if items, ok := e.Value.([]any); ok {
			return items, nil
		}
	}
	return nil, nil
}
