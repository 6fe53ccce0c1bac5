package models

import (
	"sort"
	"time"
)

// PricePoint is one trading day's closing price. Date is truncated to UTC midnight.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ascending, duplicate-free run of daily closes.
// Non-trading days are simply absent.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Source string       `json:"source"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// Empty reports whether the series has no points.
func (s PriceSeries) Empty() bool { return len(s.Points) == 0 }

// Closes returns the close column in date order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// LastDate returns the date of the most recent point, or the zero time.
func (s PriceSeries) LastDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// NormalizePoints keeps points with start <= Date <= end, sorts them
// ascending and drops later duplicates of the same date. A zero end means
// no upper bound.
func NormalizePoints(points []PricePoint, start, end time.Time) []PricePoint {
	out := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	dedup := out[:0]
	for i, p := range out {
		if i > 0 && p.Date.Equal(dedup[len(dedup)-1].Date) {
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}
