package discover

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/metrics"
	"github.com/hyperifyio/reportbuilder/internal/parse"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

const stage = "discovery"

// Checker probes whether a site answers. fetch.Client satisfies it.
type Checker interface {
	Head(ctx context.Context, rawURL string) (int, error)
}

// Options tune one discovery call.
type Options struct {
	NoReddit bool
}

// Resolver asks the LLM for candidate websites and subreddits and keeps the
// ones that look reachable.
type Resolver struct {
	LLM     llm.Completer
	Checker Checker
	// Timeout bounds the LLM call. Zero means 300s.
	Timeout time.Duration
	// CheckTimeout bounds each HEAD probe. Zero means 10s.
	CheckTimeout       time.Duration
	PauseMin, PauseMax time.Duration
	Sleep              retry.Sleeper
}

// New returns a Resolver with the default timeouts and pauses.
func New(c llm.Completer, checker Checker) *Resolver {
	return &Resolver{
		LLM:          c,
		Checker:      checker,
		Timeout:      300 * time.Second,
		CheckTimeout: 10 * time.Second,
		PauseMin:     300 * time.Millisecond,
		PauseMax:     800 * time.Millisecond,
	}
}

// Prompt builds the discovery request for keywords.
func Prompt(keywords []string) string {
	joined := strings.Join(keywords, " | ")
	return fmt.Sprintf("Based on the keywords '%s', suggest relevant information sources. "+
		"Include specific websites (news sites, reputable blogs, official project sites) and relevant subreddits. "+
		"Prioritize sources known for reliable, detailed information on this topic.\n"+
		"Format your response strictly within <toolWebsites> tags, listing each source URL or subreddit name "+
		"(e.g., 'r/technology' or 'techcrunch.com') on a new line.\n"+
		"Example:\n<toolWebsites>\ntechcrunch.com\nwired.com\nexampleblog.net/relevant-section\nr/artificial\nr/machinelearning\n</toolWebsites>",
		joined)
}

// Discover returns validated sources in the order the model proposed them.
// Any failure of the LLM step yields an empty list; individual validation
// failures only drop that candidate.
func (r *Resolver) Discover(ctx context.Context, run *runctx.Run, keywords []string, opts Options) []string {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	run.Logf("Source discovery for keywords: %q", strings.Join(keywords, " | "))
	raw, err := r.LLM.Complete(ctx, stage, Prompt(keywords), timeout)
	if err != nil {
		run.Logf("Error: source discovery call failed: %v", err)
		return nil
	}
	block, status := parse.Lookup(raw, parse.TagWebsites)
	if status != parse.Found {
		run.Logf("Error: could not parse <%s> in discovery response (%s)", parse.TagWebsites, status)
		return nil
	}
	candidates := NormalizeCandidates(block)
	if opts.NoReddit {
		candidates = dropReddit(candidates)
	}
	run.Logf("Discovered %d candidate sources; validating", len(candidates))

	var out []string
	for i, c := range candidates {
		if i > 0 {
			_ = retry.Pause(ctx, r.Sleep, r.PauseMin, r.PauseMax)
		}
		if ctx.Err() != nil {
			break
		}
		ok, detail := r.validate(ctx, c)
		if ok {
			run.Metrics.Source(metrics.OutcomeOK)
			out = append(out, c)
		} else {
			run.Metrics.Source(metrics.OutcomeRejected)
		}
		run.Logf("Source validation: %s ... %s", c, detail)
	}
	log.Info().Int("candidates", len(candidates)).Int("accepted", len(out)).Msg("source discovery complete")
	return out
}

func (r *Resolver) validate(ctx context.Context, candidate string) (bool, string) {
	if strings.HasPrefix(candidate, "r/") {
		return true, "OK (subreddit)"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return false, "failed (invalid url)"
	}
	if r.Checker == nil {
		return true, "OK (unchecked)"
	}
	base := u.Scheme + "://" + u.Host + "/"
	timeout := r.CheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	code, err := r.Checker.Head(checkCtx, base)
	if err != nil {
		return false, fmt.Sprintf("failed (%v)", err)
	}
	if code >= 400 {
		return false, fmt.Sprintf("failed (status %d at %s)", code, base)
	}
	return true, fmt.Sprintf("OK (status %d at %s)", code, base)
}

var trailingParen = regexp.MustCompile(`\s*\(.*\)\s*$`)

// NormalizeCandidates splits a <toolWebsites> block into usable sources:
// trailing parentheticals are stripped, bare domains get https://, and only
// http(s) URLs and r/ names survive.
func NormalizeCandidates(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(trailingParen.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		if strings.Contains(line, ".") && !hasSourcePrefix(line) {
			line = "https://" + line
		}
		if hasSourcePrefix(line) {
			out = append(out, line)
		}
	}
	return out
}

func hasSourcePrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "r/")
}

func dropReddit(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if strings.HasPrefix(s, "r/") || strings.Contains(s, "reddit.com/r/") {
			continue
		}
		out = append(out, s)
	}
	return out
}
