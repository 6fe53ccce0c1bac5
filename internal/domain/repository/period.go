package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a lookback window such as "60d", "2wk", "6mo", "1y" or "ytd".
type Period string

// DefaultPeriod is the lookback used for inference when none is configured.
func DefaultPeriod() Period { return "120d" }

// Start resolves the first calendar day of the period ending at end.
func (p Period) Start(end time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(string(p)))
	if s == "ytd" {
		return time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, end.Location()), nil
	}

	var unit string
	for _, u := range []string{"wk", "mo", "d", "y"} {
		if strings.HasSuffix(s, u) {
			unit = u
			break
		}
	}
	if unit == "" {
		return time.Time{}, fmt.Errorf("invalid period %q", string(p))
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, unit))
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("invalid period %q", string(p))
	}

	switch unit {
	case "d":
		return end.AddDate(0, 0, -n), nil
	case "wk":
		return end.AddDate(0, 0, -7*n), nil
	case "mo":
		return end.AddDate(0, -n, 0), nil
	default:
		return end.AddDate(-n, 0, 0), nil
	}
}

// IsValidPeriod returns true if p can be resolved.
func IsValidPeriod(p Period) bool {
	_, err := p.Start(time.Now())
	return err == nil
}

// NormalizePeriod converts a raw string to a valid period (or the default).
func NormalizePeriod(s string) Period {
	p := Period(s)
	if s == "" || !IsValidPeriod(p) {
		return DefaultPeriod()
	}
	return p
}
