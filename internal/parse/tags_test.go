package parse

import (
	"strconv"
	"testing"
)

func TestClean_RemovesThinkSpans(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"none", "  plain answer ", "plain answer"},
		{"single", "<think>internal</think>answer", "answer"},
		{"multiple", "<think>a</think>one <THINK>b</Think>two", "one two"},
		{"nested", "<think>outer <think>inner</think> still outer</think>kept", "kept"},
		{"multiline", "<think>line1\nline2\n</think>\nresult", "result"},
		{"unclosed stays", "<think>a</think> x <think>b", "x <think>b"},
		{"stray close", "</think> hi <think>x</think>!", "</think> hi !"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Fatalf("Clean(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"  spaced  ",
		"<think>x</think>",
		"<think><think>a</think>b</think>c<think>d</think>",
		"<thi<think>x</think>nk>y</think>z",
		"</think></think><think>",
		"<think>a</think> x <think>b",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Fatalf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtractTag_RoundTrip(t *testing.T) {
	values := []string{
		"hello",
		"multi\nline\ncontent",
		"with <b>markup</b> inside",
		"unicode: äöü — 日本語",
	}
	for _, v := range values {
		wrapped := "<foo>" + v + "</foo>"
		if got := ExtractTag(wrapped, "foo"); got != v {
			t.Fatalf("round trip failed: got %q want %q", got, v)
		}
	}
}

func TestExtractTag_UsesLastOpenAndFirstCloseAfter(t *testing.T) {
	in := "<report>draft</report> some text <REPORT> final </report> trailing </report>"
	if got := ExtractTag(in, "report"); got != "final" {
		t.Fatalf("got %q, want final", got)
	}
}

func TestExtractTag_FallbackReturnsCleanedText(t *testing.T) {
	in := "<think>hidden</think>  no tags here  "
	if got := ExtractTag(in, "reportContent"); got != "no tags here" {
		t.Fatalf("got %q", got)
	}
	unclosed := "prefix <reportContent> body without close"
	if got := ExtractTag(unclosed, "reportContent"); got != unclosed {
		t.Fatalf("unclosed: got %q", got)
	}
}

func TestLookup_Statuses(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		status Status
	}{
		{"<x>content</x>", "content", Found},
		{"<x>   </x>", "", Empty},
		{"nothing", "nothing", Missing},
		{"<x>open only", "<x>open only", Unclosed},
		{"<think><x>hidden</x></think>visible", "visible", Missing},
	}
	for _, tc := range cases {
		got, st := Lookup(tc.in, "x")
		if got != tc.want || st != tc.status {
			t.Fatalf("Lookup(%q)=(%q,%v), want (%q,%v)", tc.in, got, st, tc.want, tc.status)
		}
	}
	if !Missing.Absent() || !Unclosed.Absent() || Empty.Absent() || Found.Absent() {
		t.Fatalf("Absent classification is wrong")
	}
}

func TestScore(t *testing.T) {
	cases := map[string]int{
		"<summaryScore>7</summaryScore>":                 7,
		"<SummaryScore>0</summaryscore>":                 0,
		"<summaryScore>10</summaryScore>":                10,
		"<summaryScore>11</summaryScore>":                -1,
		"<summaryScore>99</summaryScore>":                -1,
		"<summaryScore>abc</summaryScore>":               -1,
		"no score":                                       -1,
		"<think><summaryScore>9</summaryScore></think>x": -1,
	}
	for in, want := range cases {
		if got := Score(in); got != want {
			t.Fatalf("Score(%q)=%d, want %d", in, got, want)
		}
	}
	for n := -5; n <= 120; n++ {
		got := Score("<summaryScore>" + strconv.Itoa(n) + "</summaryScore>")
		if got != -1 && (got < 0 || got > 10) {
			t.Fatalf("score %d escaped bounds: %d", n, got)
		}
	}
}
