package extract

import (
	"bytes"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Document is the readable content of one page.
type Document struct {
	Title     string
	Text      string
	Published time.Time
}

// FromHTML is the dependency-light extractor used when readability gives up.
// It reads the first of <article>, <main> or <body>, keeps block structure as
// blank-line separated paragraphs and skips navigation, footers, scripts and
// consent banners. Title comes from <title> or og:title, the publication date
// from the usual meta tags.
func FromHTML(input []byte) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}

	title := strings.TrimSpace(findTitle(node))
	if og := metaContent(node, "og:title"); title == "" && og != "" {
		title = og
	}
	var b strings.Builder
	for _, tag := range []string{"article", "main", "body"} {
		if root := findFirst(node, tag); root != nil {
			collectText(&b, root, false)
			break
		}
	}
	text := normalizeWhitespace(b.String())
	return Document{Title: title, Text: text, Published: publishedTime(node)}
}

var publishedKeys = []string{"article:published_time", "datepublished", "pubdate", "publishdate", "date", "dc.date"}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02", time.RFC1123, time.RFC1123Z}

// publishedTime reads the first parseable publication date from <meta> tags
// or a <time datetime> element.
func publishedTime(root *html.Node) time.Time {
	for _, k := range publishedKeys {
		if t, ok := parseDate(metaContent(root, k)); ok {
			return t
		}
	}
	if tn := findFirst(root, "time"); tn != nil {
		if t, ok := parseDate(attr(tn, "datetime")); ok {
			return t
		}
	}
	return time.Time{}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// metaContent returns the content of the first <meta> whose property, name or
// itemprop equals key (case-insensitive).
func metaContent(root *html.Node, key string) string {
	var out string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if out != "" {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "meta") {
			for _, a := range []string{"property", "name", "itemprop"} {
				if strings.EqualFold(attr(n, a), key) {
					out = strings.TrimSpace(attr(n, "content"))
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func findTitle(root *html.Node) string {
	head := findFirst(root, "head")
	if head == nil {
		return ""
	}
	if t := findFirst(head, "title"); t != nil && t.FirstChild != nil {
		return t.FirstChild.Data
	}
	return ""
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"footer": true, "aside": true, "iframe": true, "form": true, "header": true,
}

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "blockquote": true, "pre": true, "tr": true,
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ").Replace(data)
		}
		b.WriteString(data)
		return
	}
	name := ""
	if n.Type == html.ElementNode {
		name = strings.ToLower(n.Data)
		if skippedTags[name] || looksLikeBanner(n) {
			return
		}
		if name == "pre" || name == "code" {
			inPre = true
		}
		if blockTags[name] || name == "br" || name == "hr" {
			b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}
	if blockTags[name] {
		b.WriteString("\n\n")
	}
}

// looksLikeBanner matches cookie and consent overlays by id, class, role or
// data attributes.
func looksLikeBanner(n *html.Node) bool {
	for _, a := range n.Attr {
		k := strings.ToLower(a.Key)
		if k != "id" && k != "class" && k != "role" && k != "aria-label" && !strings.HasPrefix(k, "data-") {
			continue
		}
		v := strings.ToLower(a.Val)
		if strings.Contains(v, "cookie") || strings.Contains(v, "consent") || strings.Contains(v, "gdpr") {
			return true
		}
	}
	return false
}

// normalizeWhitespace trims lines, collapses inner runs of whitespace and
// keeps at most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" && (len(out) == 0 || out[len(out)-1] == "") {
			continue
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
