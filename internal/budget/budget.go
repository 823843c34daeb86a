package budget

import (
	"math"
	"unicode/utf8"
)

const (
	// MaxSummaryInputChars caps the text sent for one summary regardless of
	// the model's output budget.
	MaxSummaryInputChars = 150_000
	// DefaultMaxTokens applies when the model config leaves max_tokens unset.
	DefaultMaxTokens = 4096

	// inputShare is the fraction of max_tokens assumed available for input,
	// charsPerToken the conversion ratio used for sizing.
	inputShare    = 0.75
	charsPerToken = 3.5
)

// SummaryInputChars returns how many characters of source text fit a summary
// prompt for a model configured with maxTokens.
func SummaryInputChars(maxTokens int) int {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	n := int(float64(maxTokens) * inputShare * charsPerToken)
	return min(MaxSummaryInputChars, n)
}

// TruncateRunes cuts s to at most n characters without splitting a UTF-8
// sequence. It reports whether anything was removed.
func TruncateRunes(s string, n int) (string, bool) {
	if n < 0 {
		n = 0
	}
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// EstimateTokens approximates the token count of s with the same ratio used
// for sizing inputs. It returns 0 for an empty string.
func EstimateTokens(s string) int {
	c := utf8.RuneCountInString(s)
	if c == 0 {
		return 0
	}
	return int(math.Ceil(float64(c) / charsPerToken))
}
