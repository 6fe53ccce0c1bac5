package util

import (
    "testing"
    "time"
)

func TestParseDateFormatDateRoundTrip(t *testing.T) {
    got, err := ParseDate("2024-03-01")
    if err != nil {
        t.Fatalf("unexpected error %v", err)
    }
    if got.Location() != time.UTC {
        t.Fatalf("expected UTC, got %v", got.Location())
    }
    if FormatDate(got) != "2024-03-01" {
        t.Fatalf("unexpected date %v", got)
    }
}

func TestParseDateRejectsGarbage(t *testing.T) {
    if _, err := ParseDate("10/10/2024"); err == nil {
        t.Fatalf("expected error")
    }
}

func TestTruncateDay(t *testing.T) {
    in := time.Date(2024, 5, 6, 23, 59, 1, 5, time.UTC)
    got := TruncateDay(in)
    if !got.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected %v", got)
    }
}
