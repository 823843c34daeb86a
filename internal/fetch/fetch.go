package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/cache"
	"github.com/hyperifyio/reportbuilder/internal/retry"
)

// UserAgents is the pool a browser-like User-Agent is drawn from per request.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// RandomUserAgent picks one entry of UserAgents.
func RandomUserAgent() string {
	return UserAgents[rand.Intn(len(UserAgents))]
}

// errServer marks 5xx responses, which are retried.
var errServer = errors.New("server error")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// Client issues polite GET and HEAD requests: a random browser User-Agent per
// request unless UserAgent is set, a per-request timeout, bounded retry on
// transient failures and an optional page cache with conditional
// revalidation.
type Client struct {
	HTTPClient *http.Client
	// UserAgent overrides the random pick when non-empty.
	UserAgent string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// RetryDelay is the pause between transient failures.
	RetryDelay time.Duration
	// PerRequestTimeout bounds each request. Zero means 20s.
	PerRequestTimeout time.Duration
	Cache             *cache.Pages
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	Sleep           retry.Sleeper
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return RandomUserAgent()
}

func (c *Client) timeout() time.Duration {
	if c.PerRequestTimeout > 0 {
		return c.PerRequestTimeout
	}
	return 20 * time.Second
}

func (c *Client) httpClient() *http.Client {
	var base http.Client
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	base.CheckRedirect = c.checkRedirect()
	return &base
}

// Get fetches an HTML page and returns its body and content type. Non-HTML
// responses are rejected.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.Meta(rawURL); err == nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	var body []byte
	var ct string
	p := retry.Policy{
		MaxAttempts: c.MaxAttempts,
		Delay:       c.RetryDelay,
		IsRetryable: isTransient,
		Sleep:       c.Sleep,
		OnRetry: func(attempt int, err error) {
			log.Debug().Str("url", rawURL).Int("attempt", attempt).Err(err).Msg("retrying fetch")
		},
	}
	err := p.Do(ctx, func(ctx context.Context, _ int) error {
		b, typ, newEtag, newLastMod, status, err := c.getOnce(ctx, rawURL, etag, lastMod)
		if err != nil {
			return err
		}
		if status == http.StatusNotModified && c.Cache != nil {
			cached, cerr := c.Cache.Body(rawURL)
			if cerr == nil {
				body = cached
				if meta, merr := c.Cache.Meta(rawURL); merr == nil && typ == "" {
					typ = meta.ContentType
				}
				ct = typ
				return nil
			}
			// validators matched but the body is gone; fetch unconditionally
			etag, lastMod = "", ""
			b, typ, newEtag, newLastMod, _, err = c.getOnce(ctx, rawURL, "", "")
			if err != nil {
				return err
			}
		}
		if c.Cache != nil {
			if serr := c.Cache.Save(rawURL, typ, newEtag, newLastMod, b); serr != nil {
				log.Debug().Err(serr).Str("url", rawURL).Msg("page cache save failed")
			}
		}
		body, ct = b, typ
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, ct, nil
}

func (c *Client) getOnce(ctx context.Context, rawURL, etag, lastMod string) ([]byte, string, string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", "", "", 0, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", "", "", 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, "", "", "", resp.StatusCode, fmt.Errorf("%w: %d", errServer, resp.StatusCode)
	case resp.StatusCode == http.StatusNotModified:
		return nil, resp.Header.Get("Content-Type"), etag, lastMod, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, "", "", "", resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !isHTML(ct) {
		return nil, "", "", "", resp.StatusCode, fmt.Errorf("unsupported content type: %q", ct)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return b, ct, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), resp.StatusCode, nil
}

// Head issues a HEAD request, following redirects, and returns the final
// status code. No retry is applied.
func (c *Client) Head(ctx context.Context, rawURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	return req, nil
}

func isTransient(err error) bool {
	return errors.Is(err, errServer) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) checkRedirect() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isHTML(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
