package scrape

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseSearchLinks returns post permalinks from an old.reddit search page in
// document order, deduplicated. Only links into sub's comment threads are
// kept; relative links are resolved against base.
func parseSearchLinks(page, sub, base string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	baseURL, _ := url.Parse(base)
	marker := "/r/" + strings.ToLower(sub) + "/"
	seen := make(map[string]bool)
	var links []string
	doc.Find("a.search-link, a.search-title").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		lower := strings.ToLower(href)
		if !strings.Contains(lower, "/comments/") || !strings.Contains(lower, marker) || strings.Contains(lower, "/user/") {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links, nil
}

// post is the content read from one old.reddit comment page.
type post struct {
	Title    string
	Body     string
	Comments []string
}

func parsePost(page string, maxComments int) (post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return post{}, fmt.Errorf("parse post page: %w", err)
	}
	var p post
	p.Title = strings.TrimSpace(doc.Find("p.title a.title").First().Text())

	md := doc.Find("div.entry div.expando div.md").First()
	var paras []string
	md.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) > 0 {
		p.Body = strings.Join(paras, "\n\n")
	} else {
		p.Body = strings.TrimSpace(md.Text())
	}

	doc.Find("div.commentarea .comment .md p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if maxComments > 0 && len(p.Comments) >= maxComments {
			return false
		}
		t := strings.TrimSpace(s.Text())
		if t == "" || t == "[deleted]" || t == "[removed]" {
			return true
		}
		p.Comments = append(p.Comments, t)
		return true
	})
	return p, nil
}

// formatPost renders a reddit record.
func formatPost(sub, permalink string, p post) string {
	title := p.Title
	if title == "" {
		title = "N/A"
	}
	body := p.Body
	if body == "" {
		body = "[No Body Text]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Source: Reddit (r/%s)\nPermalink: %s\nTitle: %s\n\nBody:\n%s\n\n", sub, permalink, title, body)
	fmt.Fprintf(&b, "--- Comments (%d scraped) ---\n", len(p.Comments))
	b.WriteString(strings.Join(p.Comments, "\n\n---\n\n"))
	return strings.TrimSpace(b.String())
}
