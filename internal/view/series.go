package view

import (
	"errors"
	"strings"

	"github.com/Rishwanth-M/finboard/internal/jsondoc"
)

// ErrNoSeries is returned when a document has no series for the interval.
var ErrNoSeries = errors.New("No time-series data found")

// Interval is a chart resolution.
type Interval string

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// Intervals lists the supported chart intervals.
var Intervals = []Interval{Daily, Weekly, Monthly}

func (i Interval) orDefault() Interval {
	switch i {
	case Weekly, Monthly:
		return i
	}
	return Daily
}

// MaxPoints caps the number of points taken from a series.
const MaxPoints = 30

// Point is one chart sample.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// closeKeys are tried in order to pick a point's value; the first member of
// the entry is used when none is present.
var closeKeys = []string{"4. close", "5. adjusted close"}

// Series extracts a chart series from a time-series document. The series is
// the first top-level member whose name contains the interval; its first
// MaxPoints entries (newest first in the source) are returned oldest first.
// Entries without a numeric value are dropped.
func Series(doc any, interval Interval) ([]Point, error) {
	name := string(interval.orDefault())

	var series any
	found := false
	for _, e := range jsondoc.Entries(doc) {
		if strings.Contains(strings.ToLower(e.Key), name) {
			series, found = e.Value, true
			break
		}
	}
	if !found {
		return nil, ErrNoSeries
	}

	entries := jsondoc.Entries(series)
	if len(entries) > MaxPoints {
		entries = entries[:MaxPoints]
	}

	points := make([]Point, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if v, ok := toNumber(pointValue(entries[i].Value)); ok {
			points = append(points, Point{Date: entries[i].Key, Value: v})
		}
	}
	return points, nil
}

func pointValue(values any) any {
	for _, k := range closeKeys {
		if v, ok := jsondoc.Get(values, k); ok && v != nil {
			return v
		}
	}
	if first := jsondoc.Entries(values); len(first) > 0 {
		return first[0].Value
	}
	return nil
}
