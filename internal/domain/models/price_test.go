package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestNormalizePoints(t *testing.T) {
	in := []PricePoint{
		{Date: day("2024-01-05"), Close: 5},
		{Date: day("2024-01-02"), Close: 2},
		{Date: day("2023-12-29"), Close: 0},
		{Date: day("2024-01-03"), Close: 3},
		{Date: day("2024-01-03"), Close: 33},
		{Date: day("2024-01-08"), Close: 8},
	}
	got := NormalizePoints(in, day("2024-01-02"), day("2024-01-05"))

	assert.Equal(t, []PricePoint{
		{Date: day("2024-01-02"), Close: 2},
		{Date: day("2024-01-03"), Close: 3},
		{Date: day("2024-01-05"), Close: 5},
	}, got)
}

func TestNormalizePointsOpenEnd(t *testing.T) {
	in := []PricePoint{{Date: day("2030-01-01"), Close: 1}}
	assert.Len(t, NormalizePoints(in, day("2024-01-01"), time.Time{}), 1)
}

func TestSeriesAccessors(t *testing.T) {
	s := PriceSeries{Symbol: "AAPL", Points: []PricePoint{
		{Date: day("2024-01-02"), Close: 1.5},
		{Date: day("2024-01-03"), Close: 2.5},
	}}
	assert.Equal(t, []float64{1.5, 2.5}, s.Closes())
	assert.Equal(t, day("2024-01-03"), s.LastDate())
	assert.False(t, s.Empty())
	assert.True(t, PriceSeries{}.Empty())
	assert.True(t, PriceSeries{}.LastDate().IsZero())
}
