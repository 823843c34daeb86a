package extract

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const articlePage = `<!doctype html>
<html>
  <head>
    <title>Solid-state batteries arrive</title>
    <meta property="article:published_time" content="2024-02-03T10:00:00Z">
  </head>
  <body>
    <nav>Home | News | Contact</nav>
    <div class="cookie-banner">We use cookies</div>
    <article>
      <h1>Solid-state batteries arrive</h1>
      <p>Manufacturers announced this week that solid-state battery cells have entered pilot production, promising higher energy density and improved safety for home storage systems.</p>
      <p>Analysts expect the first residential products to reach the market within two years, although cost remains the main obstacle to wide adoption across the industry.</p>
      <ul><li>Higher density</li><li>Lower fire risk</li></ul>
    </article>
    <footer>Copyright footer</footer>
  </body>
</html>`

func TestFromHTML_PicksArticleAndSkipsBoilerplate(t *testing.T) {
	doc := FromHTML([]byte(articlePage))
	if doc.Title != "Solid-state batteries arrive" {
		t.Fatalf("title=%q", doc.Title)
	}
	for _, want := range []string{"pilot production", "Higher density", "Lower fire risk"} {
		if !strings.Contains(doc.Text, want) {
			t.Fatalf("missing %q in %q", want, doc.Text)
		}
	}
	for _, unwanted := range []string{"Home | News", "We use cookies", "Copyright footer"} {
		if strings.Contains(doc.Text, unwanted) {
			t.Fatalf("boilerplate %q leaked into %q", unwanted, doc.Text)
		}
	}
	if !doc.Published.Equal(time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published=%v", doc.Published)
	}
}

func TestFromHTML_FallbacksForTitleAndDate(t *testing.T) {
	page := `<html><head><meta property="og:title" content="OG Title"></head>
	<body><time datetime="2023-11-05">Nov 5</time><p>Body paragraph</p></body></html>`
	doc := FromHTML([]byte(page))
	if doc.Title != "OG Title" {
		t.Fatalf("title=%q", doc.Title)
	}
	if doc.Published.Format("2006-01-02") != "2023-11-05" {
		t.Fatalf("published=%v", doc.Published)
	}
	if !strings.Contains(doc.Text, "Body paragraph") {
		t.Fatalf("text=%q", doc.Text)
	}
}

func TestFromHTML_PreservesPreformattedText(t *testing.T) {
	page := "<html><body><article><pre><code>line one\n  line two</code></pre></article></body></html>"
	doc := FromHTML([]byte(page))
	if !strings.Contains(doc.Text, "line one\nline two") {
		t.Fatalf("code lines lost: %q", doc.Text)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "\n\n  a   b \n\n\n\n c\t d \n\n"
	if got := normalizeWhitespace(in); got != "a b\n\nc d" {
		t.Fatalf("got %q", got)
	}
}

func TestHeuristicExtractor_EmptyPage(t *testing.T) {
	if _, err := (HeuristicExtractor{}).Extract("https://x.example", []byte("<html><body></body></html>")); !errors.Is(err, ErrNoContent) {
		t.Fatalf("want ErrNoContent, got %v", err)
	}
}

func TestReadabilityExtractor_ArticlePage(t *testing.T) {
	doc, err := ReadabilityExtractor{}.Extract("https://examplenews.com/battery", []byte(articlePage))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(doc.Text, "pilot production") {
		t.Fatalf("text=%q", doc.Text)
	}
	if doc.Title == "" {
		t.Fatal("title missing")
	}
	if doc.Published.IsZero() {
		t.Fatal("published date missing")
	}
}

type stubExtractor struct{ called bool }

func (s *stubExtractor) Extract(string, []byte) (Document, error) {
	s.called = true
	return Document{Text: "stub"}, nil
}

func TestReadabilityExtractor_FallsBackWhenNoText(t *testing.T) {
	stub := &stubExtractor{}
	doc, err := ReadabilityExtractor{Fallback: stub}.Extract("https://x.example", []byte("<html><body></body></html>"))
	if err != nil || !stub.called || doc.Text != "stub" {
		t.Fatalf("doc=%+v err=%v called=%v", doc, err, stub.called)
	}
}
