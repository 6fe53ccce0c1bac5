package http

import (
	"time"

	xutil "StockForecaster/pkg/util"
)

// ParseDateDefault parses a YYYY-MM-DD query value. Empty input yields def.
func ParseDateDefault(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return xutil.ParseDate(s)
}
