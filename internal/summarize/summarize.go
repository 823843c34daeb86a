package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/budget"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/metrics"
	"github.com/hyperifyio/reportbuilder/internal/parse"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

const stage = "summary"

// Item types.
const (
	TypeScraped   = "scraped"
	TypeReference = "reference"
)

// MinItemChars is the shortest input worth summarizing.
const MinItemChars = 100

// errorPrefix marks summaries that stand in for a failed item.
const errorPrefix = "Error:"

// Item is one piece of text to summarize.
type Item struct {
	SourceID string
	Type     string
	Content  string
}

// Record is the summary of one item. Score is -1 when the model gave no
// usable score.
type Record struct {
	SourceID string
	Type     string
	Summary  string
	Score    int
}

// IsError reports whether the record stands in for a failed summary.
func (r Record) IsError() bool { return strings.HasPrefix(r.Summary, errorPrefix) }

// Summarizer condenses items and scores their relevance to a topic.
type Summarizer struct {
	LLM llm.Completer
	// MaxTokens sizes the input budget. Zero means budget.DefaultMaxTokens.
	MaxTokens int
	Guidance  string
	Attempts  int
	Delay     time.Duration
	Timeout   time.Duration
	Sleep     retry.Sleeper
}

// New returns a Summarizer with three attempts five seconds apart and a 180s
// call timeout.
func New(c llm.Completer, maxTokens int, guidance string) *Summarizer {
	return &Summarizer{
		LLM:       c,
		MaxTokens: maxTokens,
		Guidance:  guidance,
		Attempts:  3,
		Delay:     5 * time.Second,
		Timeout:   180 * time.Second,
	}
}

// Prompt builds the summary request for one text.
func Prompt(topic, guidance, text string) string {
	g := ""
	if strings.TrimSpace(guidance) != "" {
		g = "\n**Additional Guidance:** " + guidance + "\n"
	}
	return "Please provide a concise yet comprehensive summary of the following text. " +
		"Focus on the key information, main arguments, findings, and any specific data points " +
		"(statistics, percentages, benchmark results, dates, names) relevant to the main topic.\n" +
		"**Main Topic:** " + topic + g + "\n" +
		"**Text to Summarize:**\n---\n" + text + "\n---\n\n" +
		"**Instructions:**\n" +
		"1. Format your summary *only* within <" + parse.TagScrapeSummary + "> tags.\n" +
		"2. After the summary tag, provide a relevance score (integer 0-10) indicating how relevant the *summary* is " +
		"to the Main Topic ('" + topic + "') and adheres to any Additional Guidance provided. " +
		"Enclose the score *only* in <" + parse.TagSummaryScore + "> tags.\n\n" +
		"**Example Response Structure:**\n" +
		"<" + parse.TagScrapeSummary + ">This is a concise summary preserving key details like a 95% accuracy rate " +
		"achieved in 2023 according to Dr. Smith.</" + parse.TagScrapeSummary + ">\n" +
		"<" + parse.TagSummaryScore + ">8</" + parse.TagSummaryScore + ">"
}

// tagError carries the parse status of a response without a usable summary.
type tagError struct{ status parse.Status }

func (e tagError) Error() string { return "summary tag " + e.status.String() }

// Summarize returns one record per item long enough to summarize, in input
// order. Failed items yield an error record with score -1; nothing here is
// fatal to the run.
func (s *Summarizer) Summarize(ctx context.Context, run *runctx.Run, items []Item, topic string) []Record {
	limit := budget.SummaryInputChars(s.MaxTokens)
	var out []Record
	for i, it := range items {
		idx := i + 1
		if len([]rune(it.Content)) < MinItemChars {
			run.Logf("Skipping summary %d (%s): content too short", idx, it.SourceID)
			continue
		}
		if ctx.Err() != nil {
			run.Logf("Summarization cancelled before item %d: %v", idx, ctx.Err())
			break
		}
		text, cut := budget.TruncateRunes(it.Content, limit)
		if cut {
			run.Logf("Truncated input for summary %d (%s) to %d characters", idx, it.SourceID, limit)
		}
		rec := s.one(ctx, run, idx, it, topic, text)
		out = append(out, rec)
		s.archive(run, idx, rec)
	}
	log.Info().Int("items", len(items)).Int("summaries", len(out)).Msg("summarization complete")
	return out
}

func (s *Summarizer) one(ctx context.Context, run *runctx.Run, idx int, it Item, topic, text string) Record {
	rec := Record{SourceID: it.SourceID, Type: it.Type, Score: -1}
	prompt := Prompt(topic, s.Guidance, text)
	var raw, summary string
	policy := retry.Policy{
		MaxAttempts: s.Attempts,
		Delay:       s.Delay,
		IsRetryable: func(err error) bool {
			var te tagError
			return errors.As(err, &te) && te.status.Absent()
		},
		OnRetry: func(attempt int, err error) {
			run.Logf("Summary %d (%s) attempt %d: %v; retrying", idx, it.SourceID, attempt, err)
		},
		Sleep: s.Sleep,
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		resp, err := s.LLM.Complete(ctx, stage, prompt, s.timeout())
		if err != nil {
			return err
		}
		raw = resp
		content, status := parse.Lookup(resp, parse.TagScrapeSummary)
		if status != parse.Found {
			return tagError{status: status}
		}
		summary = content
		return nil
	})

	var te tagError
	switch {
	case err == nil:
		rec.Summary = summary
		rec.Score = parse.Score(raw)
		run.Metrics.Summary(metrics.OutcomeOK)
	case errors.As(err, &te) && te.status == parse.Empty:
		rec.Summary = fmt.Sprintf("%s Could not parse summary %d (%s) (empty tag)", errorPrefix, idx, it.SourceID)
		run.Metrics.Summary(metrics.OutcomeEmpty)
	case errors.As(err, &te):
		rec.Summary = fmt.Sprintf("%s Could not parse summary %d (%s) (<%s> tag missing)", errorPrefix, idx, it.SourceID, parse.TagScrapeSummary)
		run.Metrics.Summary(metrics.OutcomeError)
	default:
		rec.Summary = fmt.Sprintf("%s Could not parse summary %d (%s) (API call failed)", errorPrefix, idx, it.SourceID)
		run.Metrics.Summary(metrics.OutcomeError)
	}
	if err != nil {
		run.Logf("%s [%v]", rec.Summary, err)
		log.Warn().Err(err).Str("source", it.SourceID).Msg("summary failed")
	}
	return rec
}

func (s *Summarizer) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 180 * time.Second
	}
	return s.Timeout
}

var unsafeName = regexp.MustCompile(`[\\/*?:"<>|]`)

// ArchiveName returns the archive file name for summary idx.
func ArchiveName(idx int, rec Record) string {
	safe := unsafeName.ReplaceAllString(rec.SourceID, "_")
	safe = strings.ReplaceAll(safe, string(os.PathSeparator), "_")
	if r := []rune(safe); len(r) > 50 {
		safe = string(r[:50])
	}
	return fmt.Sprintf("summary_%d_%s_%s.txt", idx, rec.Type, safe)
}

func (s *Summarizer) archive(run *runctx.Run, idx int, rec Record) {
	body := fmt.Sprintf("Source: %s\nType: %s\nScore: %d\n\n%s", rec.SourceID, rec.Type, rec.Score, rec.Summary)
	_ = run.WriteArtifact(ArchiveName(idx, rec), body)
}
