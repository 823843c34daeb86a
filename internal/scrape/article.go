package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/hyperifyio/reportbuilder/internal/extract"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

// minArticleChars is the body length an article must exceed to be kept.
const minArticleChars = 150

// Fetcher retrieves an HTML page. fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Article fetches one page and extracts its readable text. It is shared by
// the direct and website strategies.
type Article struct {
	Fetcher   Fetcher
	Extractor extract.Extractor
	// PauseMin and PauseMax bound the pause after every attempt.
	PauseMin, PauseMax time.Duration
	Sleep              retry.Sleeper
}

// Fetch scrapes url unless it was already seen in this run. The URL is marked
// seen before the request so a failing page is never retried later.
func (a *Article) Fetch(ctx context.Context, run *runctx.Run, url string) (Record, bool) {
	if !run.MarkSeen(url) {
		run.Logf("Skipping already scraped URL: %s", url)
		return Record{}, false
	}
	defer func() { _ = retry.Pause(ctx, a.Sleep, a.PauseMin, a.PauseMax) }()

	body, _, err := a.Fetcher.Get(ctx, url)
	if err != nil {
		run.Logf("Website scrape failed: %s: %v", url, err)
		return Record{}, false
	}
	ex := a.Extractor
	if ex == nil {
		ex = extract.ReadabilityExtractor{}
	}
	doc, err := ex.Extract(url, body)
	if err != nil {
		run.Logf("Website scrape warning (no text): %s: %v", url, err)
		return Record{}, false
	}
	text := strings.TrimSpace(doc.Text)
	if len([]rune(text)) <= minArticleChars {
		run.Logf("Website scrape warning (too short): %s (%d chars)", url, len([]rune(text)))
		return Record{}, false
	}
	run.Logf("Website scrape success: %s (%d chars)", url, len([]rune(text)))
	return Record{URL: url, Content: FormatArticle(url, doc.Title, doc.Published, text)}, true
}

// FormatArticle renders an article record. Title and Published lines are
// omitted when unknown.
func FormatArticle(url, title string, published time.Time, text string) string {
	var b strings.Builder
	b.WriteString("Source URL: " + url + "\n")
	if t := strings.TrimSpace(title); t != "" {
		b.WriteString("Title: " + t + "\n")
	}
	if !published.IsZero() {
		b.WriteString("Published: " + published.Format("2006-01-02") + "\n")
	}
	b.WriteString("\nBody:\n")
	b.WriteString(text)
	return strings.TrimSpace(b.String())
}

// Direct scrapes an explicitly provided article URL.
type Direct struct {
	Article *Article
}

func (d *Direct) Scrape(ctx context.Context, run *runctx.Run, src Source) ([]Record, error) {
	rec, ok := d.Article.Fetch(ctx, run, src.Raw)
	if !ok {
		return nil, nil
	}
	return []Record{rec}, nil
}
