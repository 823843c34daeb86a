package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

// ErrSessionUnavailable means a browser session could not be acquired.
var ErrSessionUnavailable = errors.New("scrape: browser session unavailable")

// Record is one piece of scraped content.
type Record struct {
	URL     string
	Content string
}

// Scraper turns one classified source into content records.
type Scraper interface {
	Scrape(ctx context.Context, run *runctx.Run, src Source) ([]Record, error)
}

// Dispatcher routes items to the strategy for their kind and isolates
// failures so one bad item never stops the rest.
type Dispatcher struct {
	Direct  Scraper
	Reddit  Scraper
	Website Scraper
	// SearchEnabled gates the reddit and website strategies, which both
	// depend on searching.
	SearchEnabled      bool
	PauseMin, PauseMax time.Duration
	Sleep              retry.Sleeper
}

// Scrape processes items in order and returns every record produced.
func (d *Dispatcher) Scrape(ctx context.Context, run *runctx.Run, items []string, directURLs []string) []Record {
	direct := make(map[string]bool, len(directURLs))
	for _, u := range directURLs {
		direct[u] = true
	}
	var out []Record
	for i, item := range items {
		if ctx.Err() != nil {
			run.Logf("Scraping stopped: %v", ctx.Err())
			break
		}
		src := Classify(item, direct)
		run.Logf("Processing item %d/%d: %s (%s)", i+1, len(items), item, src.Kind)
		recs, err := d.scrapeOne(ctx, run, src)
		if err != nil {
			run.Logf("Scraping error for %s: %v", item, err)
			log.Warn().Err(err).Str("item", item).Msg("scrape failed")
		}
		run.Metrics.Scraped(src.Kind.String(), len(recs))
		out = append(out, recs...)
		if i < len(items)-1 {
			_ = retry.Pause(ctx, d.Sleep, d.PauseMin, d.PauseMax)
		}
	}
	run.Logf("Scraping complete: %d records", len(out))
	return out
}

func (d *Dispatcher) scrapeOne(ctx context.Context, run *runctx.Run, src Source) ([]Record, error) {
	var s Scraper
	switch src.Kind {
	case KindDirect:
		s = d.Direct
	case KindReddit:
		if !d.SearchEnabled {
			run.Logf("Skipping reddit source %s: search disabled", src.Raw)
			return nil, nil
		}
		s = d.Reddit
	case KindWebsite:
		if !d.SearchEnabled {
			run.Logf("Skipping website source %s: search disabled", src.Raw)
			return nil, nil
		}
		s = d.Website
	}
	if s == nil {
		run.Logf("No scraper configured for %s source %s", src.Kind, src.Raw)
		return nil, nil
	}
	return s.Scrape(ctx, run, src)
}
