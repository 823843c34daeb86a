package summarize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

type scriptedLLM struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, _, prompt string, _ time.Duration) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

func newRun(t *testing.T) *runctx.Run {
	t.Helper()
	r, err := runctx.New(t.TempDir(), "solar battery storage", time.Now(), llm.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newSummarizer(c llm.Completer) *Summarizer {
	s := New(c, 0, "")
	s.Sleep = retry.NoSleep
	return s
}

var longText = strings.Repeat("Solid-state cells reached 400 Wh/kg in 2024 pilot lines. ", 5)

func TestSummarize_ParsesSummaryAndScore(t *testing.T) {
	c := &scriptedLLM{replies: []string{"<think>hmm</think><toolScrapeSummary>Key finding.</toolScrapeSummary><summaryScore>9</summaryScore>"}}
	run := newRun(t)
	got := newSummarizer(c).Summarize(context.Background(), run, []Item{{SourceID: "https://a.example/x", Type: TypeScraped, Content: longText}}, "solar battery storage")
	if len(got) != 1 {
		t.Fatalf("records=%d", len(got))
	}
	if got[0].Summary != "Key finding." || got[0].Score != 9 || got[0].IsError() {
		t.Fatalf("unexpected record: %+v", got[0])
	}
	if !strings.Contains(c.prompts[0], "**Main Topic:** solar battery storage") {
		t.Fatalf("prompt missing topic: %q", c.prompts[0])
	}
	n, err := testutil.GatherAndCount(run.Metrics.Registry(), "reportbuilder_summaries_total")
	if err != nil || n != 1 {
		t.Fatalf("summaries series=%d err=%v, want 1", n, err)
	}
}

func TestSummarize_SkipsShortItems(t *testing.T) {
	c := &scriptedLLM{}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: "too short"}}, "t")
	if len(got) != 0 || len(c.prompts) != 0 {
		t.Fatalf("short item should be skipped: %v, %d calls", got, len(c.prompts))
	}
}

func TestSummarize_RetriesMissingTag(t *testing.T) {
	c := &scriptedLLM{replies: []string{
		"no tags at all",
		"<toolScrapeSummary>unclosed",
		"<toolScrapeSummary>Third time.</toolScrapeSummary><summaryScore>6</summaryScore>",
	}}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: longText}}, "t")
	if len(c.prompts) != 3 {
		t.Fatalf("calls=%d, want 3", len(c.prompts))
	}
	if got[0].Summary != "Third time." || got[0].Score != 6 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestSummarize_EmptyTagIsTerminal(t *testing.T) {
	c := &scriptedLLM{replies: []string{"<toolScrapeSummary>  </toolScrapeSummary><summaryScore>5</summaryScore>", "unused"}}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: longText}}, "t")
	if len(c.prompts) != 1 {
		t.Fatalf("empty tag must not be retried, calls=%d", len(c.prompts))
	}
	if !got[0].IsError() || got[0].Score != -1 || !strings.Contains(got[0].Summary, "(empty tag)") {
		t.Fatalf("got %+v", got[0])
	}
}

func TestSummarize_LLMErrorStops(t *testing.T) {
	c := &scriptedLLM{errs: []error{errors.New("boom")}}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: longText}}, "t")
	if len(c.prompts) != 1 {
		t.Fatalf("calls=%d, want 1", len(c.prompts))
	}
	if !got[0].IsError() || !strings.Contains(got[0].Summary, "API call failed") {
		t.Fatalf("got %+v", got[0])
	}
}

func TestSummarize_ExhaustedRetriesYieldErrorRecord(t *testing.T) {
	c := &scriptedLLM{replies: []string{"a", "b", "c"}}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeReference, Content: longText}}, "t")
	if len(c.prompts) != 3 {
		t.Fatalf("calls=%d", len(c.prompts))
	}
	if !got[0].IsError() || !strings.Contains(got[0].Summary, "tag missing") || got[0].Type != TypeReference {
		t.Fatalf("got %+v", got[0])
	}
}

func TestSummarize_ScoreOutOfRangeKeepsSummary(t *testing.T) {
	c := &scriptedLLM{replies: []string{"<toolScrapeSummary>Text.</toolScrapeSummary><summaryScore>42</summaryScore>"}}
	got := newSummarizer(c).Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: longText}}, "t")
	if got[0].Summary != "Text." || got[0].Score != -1 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestSummarize_TruncatesInput(t *testing.T) {
	c := &scriptedLLM{replies: []string{"<toolScrapeSummary>x</toolScrapeSummary><summaryScore>1</summaryScore>"}}
	s := newSummarizer(c)
	s.MaxTokens = 100 // 100*0.75*3.5 = 262 characters
	body := strings.Repeat("ä", 1000)
	s.Summarize(context.Background(), newRun(t), []Item{{SourceID: "s", Type: TypeScraped, Content: body}}, "t")
	if strings.Contains(c.prompts[0], strings.Repeat("ä", 263)) || !strings.Contains(c.prompts[0], strings.Repeat("ä", 262)) {
		t.Fatalf("input was not truncated to 262 runes")
	}
}

func TestSummarize_ArchivesEachSummary(t *testing.T) {
	c := &scriptedLLM{replies: []string{"<toolScrapeSummary>Archived.</toolScrapeSummary><summaryScore>7</summaryScore>"}}
	run := newRun(t)
	rec := newSummarizer(c).Summarize(context.Background(), run, []Item{{SourceID: "https://a.example/p?q=1", Type: TypeScraped, Content: longText}}, "t")[0]
	name := ArchiveName(1, rec)
	if strings.ContainsAny(name[len("summary_1_"):], `/:?`) {
		t.Fatalf("unsafe archive name %q", name)
	}
	b, err := os.ReadFile(filepath.Join(run.ArchiveDir, name))
	if err != nil {
		t.Fatal(err)
	}
	want := "Source: https://a.example/p?q=1\nType: scraped\nScore: 7\n\nArchived."
	if string(b) != want {
		t.Fatalf("archive=%q", string(b))
	}
}
