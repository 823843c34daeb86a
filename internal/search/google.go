package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GoogleEndpoint is the Custom Search JSON API.
const GoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google implements Provider against Google Programmable Search.
type Google struct {
	APIKey     string
	CSEID      string
	Endpoint   string // optional override, used in tests
	HTTPClient *http.Client
	Now        func() time.Time
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query string, limit int, window DateRange) ([]string, error) {
	if g.APIKey == "" || g.CSEID == "" {
		return nil, unavailable("google api key or cse id missing")
	}
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = GoogleEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, unavailable("bad endpoint: %v", err)
	}
	if limit <= 0 {
		limit = 10
	}
	q := u.Query()
	q.Set("key", g.APIKey)
	q.Set("cx", g.CSEID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(min(limit, 10)))
	if window.Active() {
		end := compact(window.To)
		if end == "" {
			now := time.Now
			if g.Now != nil {
				now = g.Now
			}
			end = now().Format("20060102")
		}
		q.Set("sort", "date:r:"+compact(window.From)+":"+end)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, unavailable("build request: %v", err)
	}
	hc := g.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, unavailable("google request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable("google status: %d", resp.StatusCode)
	}
	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, unavailable("google decode: %v", err)
	}
	if gr.Error != nil && gr.Error.Code == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	out := make([]string, 0, len(gr.Items))
	for _, it := range gr.Items {
		if it.Link != "" {
			out = append(out, it.Link)
		}
	}
	return out, nil
}

type googleResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
	Error *struct {
		Code int `json:"code"`
	} `json:"error"`
}
