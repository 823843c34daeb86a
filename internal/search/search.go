package search

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded means the provider refused the call for quota reasons.
	ErrQuotaExceeded = errors.New("search: quota exceeded")
	// ErrUnavailable covers missing credentials, transport failures, non-2xx
	// responses and undecodable bodies.
	ErrUnavailable = errors.New("search: provider unavailable")
)

// DateLayout is the format of DateRange bounds.
const DateLayout = "2006-01-02"

// DateRange restricts results to a publication window. Both bounds are
// optional YYYY-MM-DD strings; the filter only applies when From is set.
type DateRange struct {
	From string
	To   string
}

// Active reports whether the range should be sent to providers.
func (d DateRange) Active() bool { return d.From != "" }

// Validate checks both bounds parse as YYYY-MM-DD.
func (d DateRange) Validate() error {
	if d.From != "" {
		if _, err := time.Parse(DateLayout, d.From); err != nil {
			return fmt.Errorf("invalid from date %q: %w", d.From, err)
		}
	}
	if d.To != "" {
		if _, err := time.Parse(DateLayout, d.To); err != nil {
			return fmt.Errorf("invalid to date %q: %w", d.To, err)
		}
	}
	return nil
}

// compact renders a YYYY-MM-DD bound as YYYYMMDD. Callers validate first.
func compact(s string) string {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return ""
	}
	return t.Format("20060102")
}

// Provider returns result URLs for a query.
type Provider interface {
	Search(ctx context.Context, query string, limit int, window DateRange) ([]string, error)
	Name() string
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
