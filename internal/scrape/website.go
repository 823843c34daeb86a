package scrape

import (
	"context"
	"time"

	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
	"github.com/hyperifyio/reportbuilder/internal/search"
)

// Searcher is the part of search.Gateway the website strategy needs.
type Searcher interface {
	Search(ctx context.Context, run *runctx.Run, query string, limit int, window search.DateRange) ([]string, error)
}

// Website searches within a domain with site: queries and scrapes the first
// hits as articles.
type Website struct {
	Search  Searcher
	Article *Article
	Queries []string
	// PerQueryLimit is the result count requested per query.
	PerQueryLimit int
	// MaxResults caps how many URLs are scraped per domain. Zero means 3.
	MaxResults         int
	Window             search.DateRange
	PauseMin, PauseMax time.Duration
	Sleep              retry.Sleeper
}

func (w *Website) Scrape(ctx context.Context, run *runctx.Run, src Source) ([]Record, error) {
	maxResults := w.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	limit := w.PerQueryLimit
	if limit <= 0 {
		limit = maxResults
	}
	run.Logf("Processing website source: %s (original: %s)", src.Domain, src.Raw)

	var candidates []string
	collected := make(map[string]bool)
	for i, q := range w.Queries {
		query := "site:" + src.Domain + " " + q
		urls, err := w.Search.Search(ctx, run, query, limit, w.Window)
		if err != nil {
			run.Logf("Search failed for %q: %v", query, err)
		}
		added := 0
		for _, u := range urls {
			if collected[u] || run.Seen(u) {
				continue
			}
			collected[u] = true
			candidates = append(candidates, u)
			added++
		}
		run.Logf("Search added %d URLs for %q", added, query)
		if i < len(w.Queries)-1 {
			_ = retry.Pause(ctx, w.Sleep, w.PauseMin, w.PauseMax)
		}
	}
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	var out []Record
	for _, u := range candidates {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if rec, ok := w.Article.Fetch(ctx, run, u); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
