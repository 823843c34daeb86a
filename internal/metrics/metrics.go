package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeQuota    = "quota"
	OutcomeRetry    = "retry"
	OutcomeEmpty    = "empty"
	OutcomeRejected = "rejected"
)

// Recorder holds the per-run counters. Each run owns a private registry so
// concurrent runs in one process never share series. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	reg       *prometheus.Registry
	llmCalls  *prometheus.CounterVec
	searches  *prometheus.CounterVec
	scraped   *prometheus.CounterVec
	summaries *prometheus.CounterVec
	sources   *prometheus.CounterVec
}

// New builds a Recorder with all counters registered.
func New(runID string) *Recorder {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"run_id": runID}
	r := &Recorder{
		reg: reg,
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reportbuilder",
			Name:        "llm_calls_total",
			Help:        "LLM completion calls by pipeline stage and outcome.",
			ConstLabels: constLabels,
		}, []string{"stage", "outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reportbuilder",
			Name:        "search_calls_total",
			Help:        "Search provider calls by provider and outcome.",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		scraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reportbuilder",
			Name:        "scraped_records_total",
			Help:        "Content records produced by scraping strategy.",
			ConstLabels: constLabels,
		}, []string{"strategy"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reportbuilder",
			Name:        "summaries_total",
			Help:        "Summaries by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reportbuilder",
			Name:        "discovered_sources_total",
			Help:        "Candidate sources proposed by the LLM by validation outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.llmCalls, r.searches, r.scraped, r.summaries, r.sources)
	return r
}

func (r *Recorder) LLMCall(stage, outcome string) {
	if r == nil {
		return
	}
	r.llmCalls.WithLabelValues(stage, outcome).Inc()
}

func (r *Recorder) SearchCall(provider, outcome string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) Scraped(strategy string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.scraped.WithLabelValues(strategy).Add(float64(n))
}

func (r *Recorder) Summary(outcome string) {
	if r == nil {
		return
	}
	r.summaries.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Source(outcome string) {
	if r == nil {
		return
	}
	r.sources.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// WriteTextfile writes all series in the Prometheus text format so node
// exporters or humans can pick them up from the run archive.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
