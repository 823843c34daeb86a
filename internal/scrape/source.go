package scrape

import (
	"net/url"
	"strings"
)

// Kind selects the scraping strategy for a source item.
type Kind int

const (
	KindDirect Kind = iota
	KindReddit
	KindWebsite
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindReddit:
		return "reddit"
	case KindWebsite:
		return "website"
	default:
		return "unknown"
	}
}

// Source is a classified source item.
type Source struct {
	Kind Kind
	Raw  string
	// Subreddit is set for KindReddit; empty when no name could be derived.
	Subreddit string
	// Domain is set for KindWebsite: the URL host, or the raw item when it
	// does not parse as a URL with a host.
	Domain string
}

// IsReddit reports whether item names a subreddit, either as r/name or as a
// reddit.com/r/ URL.
func IsReddit(item string) bool {
	return strings.HasPrefix(item, "r/") || strings.Contains(item, "reddit.com/r/")
}

// Classify maps a raw item to exactly one strategy. Reddit identifiers win
// over membership in the direct-URL set, which wins over the website
// fallback.
func Classify(item string, direct map[string]bool) Source {
	switch {
	case IsReddit(item):
		return Source{Kind: KindReddit, Raw: item, Subreddit: subredditName(item)}
	case direct[item]:
		return Source{Kind: KindDirect, Raw: item}
	default:
		return Source{Kind: KindWebsite, Raw: item, Domain: domainOf(item)}
	}
}

func subredditName(item string) string {
	rest := item
	if i := strings.Index(item, "reddit.com/r/"); i >= 0 {
		rest = item[i+len("reddit.com/r/"):]
	} else {
		rest = strings.TrimPrefix(item, "r/")
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

func domainOf(item string) string {
	if u, err := url.Parse(item); err == nil && u.Host != "" {
		return u.Host
	}
	return item
}
