package util

import "testing"

func TestNormalizeSymbol(t *testing.T) {
    for in, want := range map[string]string{"  msft ": "MSFT", "brk-b": "BRK-B", "": ""} {
        if got := NormalizeSymbol(in); got != want {
            t.Fatalf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
        }
    }
}
