package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountsByLabel(t *testing.T) {
	r := New("run-1")
	r.LLMCall("summary", OutcomeOK)
	r.LLMCall("summary", OutcomeOK)
	r.LLMCall("report", OutcomeRetry)
	r.SearchCall("google", OutcomeQuota)
	r.Scraped("website", 3)
	r.Scraped("website", 0)
	r.Summary(OutcomeError)

	if got := testutil.ToFloat64(r.llmCalls.WithLabelValues("summary", OutcomeOK)); got != 2 {
		t.Fatalf("summary ok calls=%v, want 2", got)
	}
	if got := testutil.ToFloat64(r.llmCalls.WithLabelValues("report", OutcomeRetry)); got != 1 {
		t.Fatalf("report retry=%v", got)
	}
	if got := testutil.ToFloat64(r.searches.WithLabelValues("google", OutcomeQuota)); got != 1 {
		t.Fatalf("google quota=%v", got)
	}
	if got := testutil.ToFloat64(r.scraped.WithLabelValues("website")); got != 3 {
		t.Fatalf("scraped=%v, want 3", got)
	}
	if got := testutil.ToFloat64(r.summaries.WithLabelValues(OutcomeError)); got != 1 {
		t.Fatalf("summary errors=%v", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.LLMCall("x", OutcomeOK)
	r.SearchCall("x", OutcomeOK)
	r.Scraped("x", 1)
	r.Summary(OutcomeOK)
	r.Source(OutcomeOK)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("nil recorder write: %v", err)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New("run-2")
	r.Source(OutcomeRejected)
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "reportbuilder_discovered_sources_total") || !strings.Contains(out, `run_id="run-2"`) {
		t.Fatalf("unexpected textfile:\n%s", out)
	}
}
