package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Tag names used by the LLM response protocol.
const (
	TagWebsites      = "toolWebsites"
	TagScrapeSummary = "toolScrapeSummary"
	TagSummaryScore  = "summaryScore"
	TagReport        = "reportContent"
	TagRefinedReport = "refinedReport"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Status classifies the outcome of a tag lookup.
type Status int

const (
	// Found means the tag pair was present with non-empty content.
	Found Status = iota
	// Empty means the tag pair was present but held only whitespace.
	Empty
	// Missing means no opening tag was present.
	Missing
	// Unclosed means the last opening tag had no closing tag after it.
	Unclosed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Empty:
		return "empty"
	case Missing:
		return "missing"
	case Unclosed:
		return "unclosed"
	default:
		return "unknown"
	}
}

// Absent reports whether the tag could not be located at all. Absent tags are
// the retryable failure mode; an empty tag is not.
func (s Status) Absent() bool { return s == Missing || s == Unclosed }

// Clean removes every <think>...</think> span, innermost first, until no
// complete span remains, and trims surrounding whitespace. Matching is
// case-insensitive and spans newlines. Clean is idempotent.
func Clean(text string) string {
	s := text
	from := 0
	for {
		lower := foldASCII(s)
		rel := strings.Index(lower[from:], thinkClose)
		if rel < 0 {
			break
		}
		closeAt := from + rel
		openAt := strings.LastIndex(lower[:closeAt], thinkOpen)
		if openAt < 0 {
			// stray closing tag; look for the next one
			from = closeAt + len(thinkClose)
			continue
		}
		s = s[:openAt] + s[closeAt+len(thinkClose):]
		from = 0
	}
	return strings.TrimSpace(s)
}

// ExtractTag cleans text and returns the trimmed content between the last
// <tag> and the first </tag> following it. When the tag is missing or
// unclosed the whole cleaned text is returned; use Lookup to tell the cases
// apart.
func ExtractTag(text, tag string) string {
	out, _ := Lookup(text, tag)
	return out
}

// Lookup behaves like ExtractTag and additionally reports how the tag was
// found.
func Lookup(text, tag string) (string, Status) {
	cleaned := Clean(text)
	lower := foldASCII(cleaned)
	open := "<" + foldASCII(tag) + ">"
	closing := "</" + foldASCII(tag) + ">"

	at := strings.LastIndex(lower, open)
	if at < 0 {
		return cleaned, Missing
	}
	start := at + len(open)
	end := strings.Index(lower[start:], closing)
	if end < 0 {
		return cleaned, Unclosed
	}
	content := strings.TrimSpace(cleaned[start : start+end])
	if content == "" {
		return "", Empty
	}
	return content, Found
}

var scoreRe = regexp.MustCompile(`(?i)<summaryScore>(\d{1,2})</summaryScore>`)

// Score extracts the relevance score from a summary response. It returns -1
// when the score tag is missing or holds a value outside [0,10].
func Score(text string) int {
	m := scoreRe.FindStringSubmatch(Clean(text))
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 10 {
		return -1
	}
	return n
}

// foldASCII lowercases ASCII letters only so byte offsets stay aligned with
// the original string.
func foldASCII(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
