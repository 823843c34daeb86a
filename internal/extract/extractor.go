package extract

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
)

// ErrNoContent is returned when no strategy produced any text.
var ErrNoContent = errors.New("extract: no content")

// Extractor turns a fetched HTML page into a Document.
type Extractor interface {
	Extract(pageURL string, body []byte) (Document, error)
}

// HeuristicExtractor walks the DOM directly; see FromHTML.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(_ string, body []byte) (Document, error) {
	doc := FromHTML(body)
	if doc.Text == "" {
		return doc, ErrNoContent
	}
	return doc, nil
}

// ReadabilityExtractor runs go-readability and falls back to the heuristic
// extractor when readability fails or finds no text. Title and publication
// date missing from the readability result are filled from the heuristic
// pass.
type ReadabilityExtractor struct {
	Fallback Extractor
}

func (r ReadabilityExtractor) fallback() Extractor {
	if r.Fallback != nil {
		return r.Fallback
	}
	return HeuristicExtractor{}
}

func (r ReadabilityExtractor) Extract(pageURL string, body []byte) (Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("readability failed; using heuristic extraction")
		return r.fallback().Extract(pageURL, body)
	}
	text := normalizeWhitespace(article.TextContent)
	if text == "" {
		return r.fallback().Extract(pageURL, body)
	}
	doc := Document{Title: strings.TrimSpace(article.Title), Text: text}
	if article.PublishedTime != nil {
		doc.Published = *article.PublishedTime
	}
	if doc.Title == "" || doc.Published.IsZero() {
		h := FromHTML(body)
		if doc.Title == "" {
			doc.Title = h.Title
		}
		if doc.Published.IsZero() {
			doc.Published = h.Published
		}
	}
	return doc, nil
}
