package fetch

import "github.com/Rishwanth-M/finboard/internal/jsondoc"

// softErrorKeys are top-level keys some APIs use to report throttling with a
// 200 status instead of returning data.
var softErrorKeys = []string{"Information", "Note"}

// SoftError reports whether doc is a rate-limit-shaped success and returns the
// API's message. Such documents must not be flattened or bound to fields.
func SoftError(doc any) (string, bool) {
	for _, k := range softErrorKeys {
		v, ok := jsondoc.Get(doc, k)
		if !ok || v == nil || v == "" || v == false {
			continue
		}
		return jsondoc.Sample(v), true
	}
	return "", false
}
