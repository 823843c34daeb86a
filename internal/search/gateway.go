package search

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/metrics"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

// Gateway queries a primary provider and falls back to a secondary one when
// the primary is over quota or unavailable.
type Gateway struct {
	Primary  Provider
	Fallback Provider
	// Timeout bounds each provider call. Zero means 20s.
	Timeout time.Duration
	// PauseMin and PauseMax bound the random pause after each provider call.
	PauseMin, PauseMax time.Duration
	Sleep              retry.Sleeper
}

// NewGateway returns a Gateway with the default timeout and pauses.
func NewGateway(primary, fallback Provider) *Gateway {
	return &Gateway{
		Primary:  primary,
		Fallback: fallback,
		Timeout:  20 * time.Second,
		PauseMin: time.Second,
		PauseMax: 2 * time.Second,
	}
}

// Search returns URLs for query. A primary result, even an empty one, is used
// as-is. When both providers report quota exhaustion the results are
// discarded and no error is returned.
func (g *Gateway) Search(ctx context.Context, run *runctx.Run, query string, limit int, window DateRange) ([]string, error) {
	if window.Active() || window.To != "" {
		if err := window.Validate(); err != nil {
			auditf(run, "Search warning: %v; ignoring date range", err)
			window = DateRange{}
		}
	}
	if g.Primary == nil {
		return nil, unavailable("no search provider configured")
	}
	urls, err := g.call(ctx, run, g.Primary, query, limit, window)
	if err == nil {
		return urls, nil
	}
	primaryQuota := errors.Is(err, ErrQuotaExceeded)
	if !primaryQuota && !errors.Is(err, ErrUnavailable) {
		return nil, err
	}
	if g.Fallback == nil {
		return nil, err
	}
	auditf(run, "Primary search %s failed (%v); trying %s", g.Primary.Name(), err, g.Fallback.Name())
	urls, ferr := g.call(ctx, run, g.Fallback, query, limit, window)
	if ferr == nil {
		return urls, nil
	}
	if primaryQuota && errors.Is(ferr, ErrQuotaExceeded) {
		auditf(run, "Both search providers over quota for %q; discarding", query)
		return nil, nil
	}
	return nil, ferr
}

func (g *Gateway) call(ctx context.Context, run *runctx.Run, p Provider, query string, limit int, window DateRange) ([]string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	urls, err := p.Search(callCtx, query, limit, window)
	cancel()

	var rec *metrics.Recorder
	if run != nil {
		rec = run.Metrics
	}
	switch {
	case err == nil:
		rec.SearchCall(p.Name(), metrics.OutcomeOK)
		auditf(run, "%s search %q: %d results", p.Name(), query, len(urls))
	case errors.Is(err, ErrQuotaExceeded):
		rec.SearchCall(p.Name(), metrics.OutcomeQuota)
		auditf(run, "%s search %q: quota exceeded", p.Name(), query)
	default:
		rec.SearchCall(p.Name(), metrics.OutcomeError)
		auditf(run, "%s search %q failed: %v", p.Name(), query, err)
	}
	log.Debug().Str("provider", p.Name()).Str("query", query).Int("results", len(urls)).Err(err).Msg("search call")

	// a cancelled pause surfaces on the next blocking call
	_ = retry.Pause(ctx, g.Sleep, g.PauseMin, g.PauseMax)
	return urls, err
}

func auditf(run *runctx.Run, format string, args ...any) {
	if run != nil {
		run.Logf(format, args...)
	}
}
