package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// SeriesKey builds the cache key for a fetched price series.
func SeriesKey(symbol string, start, end time.Time) string {
	return "series:" + symbol + ":" + start.UTC().Format("2006-01-02") + ":" + end.UTC().Format("2006-01-02")
}
