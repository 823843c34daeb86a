package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileProvider serves canned results from a local JSON file for offline runs
// and tests. Two shapes are accepted:
//
//	[{"query": "site:example.com battery", "urls": ["https://..."]}, ...]
//	["https://...", "https://..."]
//
// With the first shape an entry matches when its query equals the request
// (case-insensitive) or, for an empty query field, always. The flat shape
// answers every query.
type FileProvider struct {
	Path string
}

type fileEntry struct {
	Query string   `json:"query"`
	URLs  []string `json:"urls"`
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, limit int, _ DateRange) ([]string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, unavailable("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, unavailable("read %s: %v", f.Path, err)
	}
	var all []string
	var entries []fileEntry
	if err := json.Unmarshal(b, &entries); err == nil {
		q := strings.ToLower(strings.TrimSpace(query))
		for _, e := range entries {
			if e.Query == "" || strings.ToLower(strings.TrimSpace(e.Query)) == q {
				all = append(all, e.URLs...)
			}
		}
	} else if ferr := json.Unmarshal(b, &all); ferr != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, f.Path, err)
	}
	out := make([]string, 0, len(all))
	for _, u := range all {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, u)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
