// Package pathres resolves dotted field paths against decoded JSON documents.
package pathres

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Rishwanth-M/finboard/internal/jsondoc"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// Normalize rewrites bracket indexes into dot form: "a[0].b" becomes "a.0.b".
func Normalize(path string) string {
	return bracketIndex.ReplaceAllString(path, ".$1")
}

// Resolve walks path through doc and returns the addressed value.
//
// Each segment is first matched structurally (object key or array index). When
// that fails, the remaining segments are joined back together and looked up as
// one literal key on the current object, which covers APIs whose keys contain
// dots ("5. adjusted close"). The second bool is false when nothing was found.
// A present null leaf resolves to (nil, true).
func Resolve(doc any, path string) (any, bool) {
	if doc == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(Normalize(path), ".")

	cur := doc
	for i, seg := range segments {
		if cur == nil {
			return nil, false
		}
		if next, ok := exactSegment(cur, seg); ok {
			cur = next
			continue
		}
		if v, ok := literalKey(cur, strings.Join(segments[i:], ".")); ok {
			return v, true
		}
		return nil, false
	}
	return cur, true
}

// exactSegment matches seg as an object key or an array index.
func exactSegment(cur any, seg string) (any, bool) {
	if items, ok := cur.([]any); ok {
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(items) {
			return nil, false
		}
		return items[idx], true
	}
	return jsondoc.Get(cur, seg)
}

// literalKey matches the unconsumed remainder of the path as a single key.
func literalKey(cur any, rest string) (any, bool) {
	return jsondoc.Get(cur, rest)
}

// Label is the display label of a path: its last dot segment.
func Label(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
