package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// BraveEndpoint is the Brave web search API.
const BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave implements Provider against the Brave Search API.
type Brave struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, limit int, window DateRange) ([]string, error) {
	if b.APIKey == "" {
		return nil, unavailable("brave api key missing")
	}
	endpoint := b.Endpoint
	if endpoint == "" {
		endpoint = BraveEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, unavailable("bad endpoint: %v", err)
	}
	if limit <= 0 {
		limit = 10
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	if window.Active() {
		// end bound may legitimately be empty
		q.Set("freshness", "pd:"+compact(window.From)+","+compact(window.To))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, unavailable("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)
	hc := b.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, unavailable("brave request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable("brave status: %d", resp.StatusCode)
	}
	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, unavailable("brave decode: %v", err)
	}
	out := make([]string, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		if r.URL != "" {
			out = append(out, r.URL)
		}
	}
	return out, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}
