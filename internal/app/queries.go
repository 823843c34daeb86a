package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SplitKeywords splits a comma-separated keyword flag, dropping blanks.
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// BuildQueries returns one query per keyword, or a single space-joined query
// when combine is set.
func BuildQueries(keywords []string, combine bool) []string {
	var kws []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return nil
	}
	if combine {
		return []string{strings.Join(kws, " ")}
	}
	return kws
}

// loadDirectArticles reads one URL per line. Lines that do not start with
// http:// or https:// are ignored.
func loadDirectArticles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("direct articles: %w", err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("direct articles: %w", err)
	}
	return out, nil
}

// mergeSources puts direct URLs first and appends discovered sources not
// already present. Matching is exact.
func mergeSources(direct, discovered []string) []string {
	seen := make(map[string]bool, len(direct)+len(discovered))
	var out []string
	for _, list := range [][]string{direct, discovered} {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
