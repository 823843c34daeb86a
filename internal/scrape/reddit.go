package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

const (
	defaultRedditBase = "https://old.reddit.com"
	minRedditChars    = 100
)

// Session is a live browser able to render pages.
type Session interface {
	Page(ctx context.Context, rawURL string) (string, error)
	Close()
}

// SessionFactory opens browser sessions. Acquisition failures should wrap
// ErrSessionUnavailable.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// Reddit searches a subreddit on old.reddit.com for each query and scrapes
// the matching posts with one browser session per subreddit.
type Reddit struct {
	Sessions SessionFactory
	Queries  []string
	// BaseURL defaults to https://old.reddit.com.
	BaseURL string
	// MaxPosts caps posts per subreddit. Zero means 5.
	MaxPosts int
	// MaxComments caps comment paragraphs per post. Zero means 5.
	MaxComments int
	// SearchPause separates searches, PostPause separates posts.
	SearchPauseMin, SearchPauseMax time.Duration
	PostPauseMin, PostPauseMax     time.Duration
	Sleep                          retry.Sleeper
}

func (r *Reddit) base() string {
	if r.BaseURL != "" {
		return strings.TrimRight(r.BaseURL, "/")
	}
	return defaultRedditBase
}

// SearchURL builds the restricted subreddit search URL for query.
func (r *Reddit) SearchURL(sub, query string) string {
	return fmt.Sprintf("%s/r/%s/search/?q=%s&restrict_sr=1&sort=relevance&t=all", r.base(), sub, url.QueryEscape(query))
}

func (r *Reddit) Scrape(ctx context.Context, run *runctx.Run, src Source) ([]Record, error) {
	sub := src.Subreddit
	if sub == "" {
		run.Logf("Scraping warning: invalid subreddit source format %q", src.Raw)
		return nil, nil
	}
	if r.Sessions == nil {
		return nil, fmt.Errorf("r/%s: %w: no session factory", sub, ErrSessionUnavailable)
	}
	maxPosts := r.MaxPosts
	if maxPosts <= 0 {
		maxPosts = 5
	}
	maxComments := r.MaxComments
	if maxComments <= 0 {
		maxComments = 5
	}

	sess, err := r.Sessions.Open(ctx)
	if err != nil {
		run.Logf("Browser session for r/%s unavailable: %v", sub, err)
		return nil, fmt.Errorf("r/%s: %w", sub, err)
	}
	defer sess.Close()

	var links []string
	unique := make(map[string]bool)
	for i, q := range r.Queries {
		searchURL := r.SearchURL(sub, q)
		page, err := sess.Page(ctx, searchURL)
		if err != nil {
			run.Logf("Reddit search failed for r/%s query %q: %v", sub, q, err)
		} else {
			found, perr := parseSearchLinks(page, sub, r.base())
			if perr != nil {
				run.Logf("Reddit search parse failed for r/%s: %v", sub, perr)
			}
			added := 0
			for _, l := range found {
				if !unique[l] {
					unique[l] = true
					links = append(links, l)
					added++
				}
			}
			run.Logf("Reddit search r/%s %q: %d new post links", sub, q, added)
		}
		if i < len(r.Queries)-1 {
			_ = retry.Pause(ctx, r.Sleep, r.SearchPauseMin, r.SearchPauseMax)
		}
	}
	if len(links) > maxPosts {
		links = links[:maxPosts]
	}

	var out []Record
	for i, link := range links {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if !run.MarkSeen(link) {
			run.Logf("Skipping already scraped URL: %s", link)
			continue
		}
		if rec, ok := r.scrapePost(ctx, run, sess, sub, link, maxComments); ok {
			out = append(out, rec)
		}
		if i < len(links)-1 {
			_ = retry.Pause(ctx, r.Sleep, r.PostPauseMin, r.PostPauseMax)
		}
	}
	return out, nil
}

func (r *Reddit) scrapePost(ctx context.Context, run *runctx.Run, sess Session, sub, link string, maxComments int) (Record, bool) {
	page, err := sess.Page(ctx, link)
	if err != nil {
		run.Logf("Reddit post load failed: %s: %v", link, err)
		return Record{}, false
	}
	p, err := parsePost(page, maxComments)
	if err != nil {
		run.Logf("Reddit post parse failed: %s: %v", link, err)
		return Record{}, false
	}
	content := formatPost(sub, link, p)
	if len([]rune(content)) <= minRedditChars {
		run.Logf("Reddit scrape warning (too short): %s (%d chars)", link, len([]rune(content)))
		return Record{}, false
	}
	run.Logf("Reddit scrape success: %s (%d chars)", link, len([]rune(content)))
	return Record{URL: link, Content: content}, true
}
