package budget

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSummaryInputChars(t *testing.T) {
	cases := map[int]int{
		0:       10752, // default 4096
		4096:    10752,
		1000:    2625,
		100_000: MaxSummaryInputChars,
	}
	for in, want := range cases {
		if got := SummaryInputChars(in); got != want {
			t.Fatalf("SummaryInputChars(%d)=%d, want %d", in, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	s, cut := TruncateRunes("hello", 10)
	if s != "hello" || cut {
		t.Fatalf("short string changed: %q %v", s, cut)
	}
	s, cut = TruncateRunes("äöüäöü", 4)
	if s != "äöüä" || !cut {
		t.Fatalf("got %q %v", s, cut)
	}
	if !utf8.ValidString(s) {
		t.Fatal("truncation split a rune")
	}
	s, _ = TruncateRunes(strings.Repeat("x", 20), 0)
	if s != "" {
		t.Fatalf("zero limit gave %q", s)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Fatal("empty should be 0")
	}
	if got := EstimateTokens(strings.Repeat("a", 7)); got != 2 {
		t.Fatalf("got %d", got)
	}
}
