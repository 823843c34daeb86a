package synth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/budget"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/metrics"
	"github.com/hyperifyio/reportbuilder/internal/parse"
	"github.com/hyperifyio/reportbuilder/internal/refdocs"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
	"github.com/hyperifyio/reportbuilder/internal/summarize"
)

const (
	stageGenerate = "report"
	stageRefine   = "refinement"
)

var (
	// ErrNoContext means no summary passed the threshold and no reference
	// document was supplied verbatim.
	ErrNoContext = errors.New("no usable context for report generation")
	// ErrGenerationFailed means every generation attempt failed.
	ErrGenerationFailed = errors.New("report generation failed")
)

const noReferences = "(No summaries met the score threshold and no non-summarized reference documents were used)"

// Input is everything the report is written from. Documents holds the
// reference documents that were not summarized and go into the context
// verbatim.
type Input struct {
	Topic     string
	Summaries []summarize.Record
	Documents []refdocs.Document
}

// Draft is the first-pass report with the material it was built from.
type Draft struct {
	Topic     string
	Report    string
	Used      []summarize.Record
	Documents []refdocs.Document
}

// References renders the numbered reference list for the draft.
func (d Draft) References() string { return References(d.Used, d.Documents) }

// Synthesizer writes the report in two passes: generation from the context,
// then presentation refinement.
type Synthesizer struct {
	LLM       llm.Completer
	Threshold int
	Guidance  string
	Attempts  int
	Delay     time.Duration

	GenerateTimeout time.Duration
	RefineTimeout   time.Duration
	Sleep           retry.Sleeper
}

// New returns a Synthesizer with threshold 5, three attempts five seconds
// apart, and the 3000s/1200s pass timeouts.
func New(c llm.Completer, guidance string) *Synthesizer {
	return &Synthesizer{
		LLM:             c,
		Threshold:       5,
		Guidance:        guidance,
		Attempts:        3,
		Delay:           5 * time.Second,
		GenerateTimeout: 3000 * time.Second,
		RefineTimeout:   1200 * time.Second,
	}
}

// SelectSummaries keeps non-error records scoring at least threshold, best
// first. Records with equal scores keep their input order.
func SelectSummaries(records []summarize.Record, threshold int) []summarize.Record {
	var out []summarize.Record
	for _, r := range records {
		if r.Score < 0 || r.Score < threshold || r.IsError() {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Context renders the selected summaries and verbatim documents as prompt
// context. Either part may be empty.
func Context(used []summarize.Record, docs []refdocs.Document) (summaries, documents string) {
	parts := make([]string, 0, len(used))
	for i, r := range used {
		parts = append(parts, fmt.Sprintf("Summary %d (Source: %s, Type: %s, Score: %d):\n%s", i+1, r.SourceID, r.Type, r.Score, r.Summary))
	}
	summaries = strings.Join(parts, "\n\n")
	if len(docs) > 0 {
		d := make([]string, 0, len(docs))
		for _, doc := range docs {
			d = append(d, fmt.Sprintf("Reference Document (Path: %s):\n%s", doc.Path, doc.Content))
		}
		documents = "**Full Reference Documents (Use for context):**\n---\n" + strings.Join(d, "\n\n---\n\n") + "\n---"
	}
	return summaries, documents
}

// References lists each used summary by source id, then each verbatim
// document by file name.
func References(used []summarize.Record, docs []refdocs.Document) string {
	var b strings.Builder
	b.WriteString("## References\n\n")
	n := 0
	for _, r := range used {
		if r.SourceID == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, r.SourceID)
	}
	for _, d := range docs {
		if d.Path == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, filepath.Base(d.Path))
	}
	if n == 0 {
		b.WriteString(noReferences + "\n")
	}
	return b.String()
}

func (s *Synthesizer) guidanceText() string {
	if strings.TrimSpace(s.Guidance) == "" {
		return ""
	}
	return "\n**Additional Guidance:** " + s.Guidance + "\n"
}

// GenerationPrompt builds the first-pass prompt.
func (s *Synthesizer) GenerationPrompt(topic, summaries, documents string) string {
	g := s.guidanceText()
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI research assistant. Your task is to write a comprehensive, well-structured, and formal research report on the specific topic: '%s'.%s\n", topic, g)
	fmt.Fprintf(&b, "**Topic:** %s\n%s\n", topic, g)
	b.WriteString("**Task:**\n")
	b.WriteString("Generate a detailed research report based *exclusively* and *thoroughly* on the provided context (summaries and/or full reference documents). " +
		"Synthesize the information, identify key themes, arguments, evidence, and specific supporting details (such as statistics, names, dates, benchmarks, findings). " +
		"Structure the report logically with:\n")
	fmt.Fprintf(&b, "  1.  **Introduction:** Clearly define the topic '%s', state the report's purpose, and briefly outline the main points or structure derived from the context.\n", topic)
	b.WriteString("  2.  **Body Paragraphs:** Dedicate each paragraph to a distinct theme, aspect, or finding identified in the context. " +
		"Support claims with evidence implicitly drawn *only* from the provided summaries and documents. Ensure smooth transitions between paragraphs.\n")
	b.WriteString("  3.  **Conclusion:** Summarize the key findings discussed in the body. Briefly mention potential implications, unanswered questions, or future directions suggested by the context.\n")
	b.WriteString("Maintain an objective, formal, and informative tone throughout. Do *not* introduce outside knowledge or opinions.\n\n")
	b.WriteString("**Context for Report Generation (Analyze ALL Provided Information):**\n\n")
	fmt.Fprintf(&b, "--- Summaries (Prioritize analysis of these) ---\n%s\n---\n\n", summaries)
	fmt.Fprintf(&b, "%s\n\n", documents)
	fmt.Fprintf(&b, "**CRITICAL FORMATTING RULES (OUTPUT MUST FOLLOW EXACTLY):**\n"+
		"1. **OUTPUT TAG:** You MUST enclose the *entire* report content within a single pair of `<%[1]s>` tags.\n"+
		"2. **CONTENT:** The content must be well-written, coherent, logically structured, and strictly based on the provided context.\n"+
		"3. **NO EXTRA TEXT:** ONLY include the report text inside the `<%[1]s>` tags. **ABSOLUTELY NO** other text, introductory/closing remarks outside the tags, explanations, or thinking tags (`<think>...</think>`) should be present anywhere in the final output.\n\n"+
		"Remember: The entire output MUST be ONLY the report text enclosed in a single `<%[1]s>` tag.", parse.TagReport)
	return b.String()
}

// RefinementPrompt builds the second-pass prompt.
func RefinementPrompt(topic, report, references string) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant specializing in document presentation and formatting.\n")
	fmt.Fprintf(&b, "**Task:** Refine the following research report text to significantly improve its presentation for a supervisor. "+
		"Focus on enhancing readability, structure, scannability, and visual appeal using standard text formatting. The topic is '%s'.\n\n", topic)
	b.WriteString("**Refinement Instructions:**\n" +
		"1.  **Executive Summary:** Add a concise (2-4 sentence) 'Executive Summary' or 'Key Takeaways' section at the very beginning, summarizing the report's core findings.\n" +
		"2.  **Headings/Subheadings:** Ensure clear, descriptive headings (e.g., using markdown-style `#`, `##`, `###`) for sections like Introduction, different Body themes, Conclusion, and the References section.\n" +
		"3.  **Lists:** Convert dense paragraph descriptions of items, steps, pros/cons, or methods into bulleted (`*` or `-`) or numbered lists. Ensure each list item is on its own line, preceded by a blank line if it follows a paragraph.\n" +
		"4.  **Tables (Optional but Recommended):** If the text compares multiple methods, items, or data points, try to structure this into a simple markdown table for easy comparison. If a table is not feasible, use parallel bullet points under clear subheadings.\n" +
		"5.  **Paragraphs:** Break down long paragraphs into shorter, more focused ones, each addressing a single idea.\n" +
		"6.  **Bolding:** Use bold text (`**text**`) strategically and sparingly for key terms or crucial conclusions within sentences, not entire sentences.\n" +
		"7.  **Clarity & Flow:** Ensure smooth transitions and logical flow between sections.\n" +
		"8.  **Remove Inline Citations:** CRITICAL - Remove all inline parenthetical citations like `(Summary X)` or `(Summary X, Y)` from the body of the report.\n" +
		"9.  **Add References Section:** Append the following 'References' section exactly as provided at the VERY END of the report, after the conclusion.\n" +
		"10. **No New Content:** Do NOT add information not present in the original text. Focus *only* on restructuring, formatting, removing inline citations, and adding the provided References section.\n\n")
	fmt.Fprintf(&b, "**Original Report Text to Refine:**\n--- START ORIGINAL REPORT ---\n%s\n--- END ORIGINAL REPORT ---\n\n", report)
	fmt.Fprintf(&b, "**References Section to Add at the End:**\n--- START REFERENCES ---\n%s--- END REFERENCES ---\n\n", references)
	fmt.Fprintf(&b, "**CRITICAL OUTPUT FORMAT:** Enclose the *entire* refined report (including the added References section) within a single pair of `<%[1]s>` tags. "+
		"ONLY include the refined report text inside these tags. NO other text, remarks, or explanations outside the tags.\n<%[1]s>\n</%[1]s>", parse.TagRefinedReport)
	return b.String()
}

// pass describes one tagged LLM exchange with bounded retry.
type pass struct {
	stage   string
	label   string
	tag     string
	prompt  string
	timeout time.Duration
	rawFile string
}

type passError struct {
	status parse.Status
}

func (e passError) Error() string { return "response tag " + e.status.String() }

// run calls the LLM until the tag yields content or attempts are spent.
// Every failed attempt, including LLM errors and empty tags, is retried. It
// returns the tag content, or the last cleaned response with an error.
func (s *Synthesizer) run(ctx context.Context, run *runctx.Run, p pass) (string, string, error) {
	var content, last string
	policy := retry.Policy{
		MaxAttempts: s.Attempts,
		Delay:       s.Delay,
		IsRetryable: func(error) bool { return true },
		OnRetry: func(attempt int, err error) {
			run.Logf("%s: attempt %d/%d failed (%v); retrying in %s", p.label, attempt, max(s.Attempts, 1), err, s.Delay)
			run.Metrics.LLMCall(p.stage, metrics.OutcomeRetry)
		},
		Sleep: s.Sleep,
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		raw, err := s.LLM.Complete(ctx, p.stage, p.prompt, p.timeout)
		if err != nil {
			return err
		}
		if p.rawFile != "" {
			_ = run.WriteArtifact(p.rawFile, raw)
		}
		last = parse.Clean(raw)
		got, status := parse.Lookup(raw, p.tag)
		if status != parse.Found {
			return passError{status: status}
		}
		content = got
		return nil
	})
	return content, last, err
}

// Generate writes the first-pass report.
func (s *Synthesizer) Generate(ctx context.Context, run *runctx.Run, in Input) (Draft, error) {
	used := SelectSummaries(in.Summaries, s.Threshold)
	run.Logf("Report generation: %d of %d summaries at or above score %d; %d reference documents verbatim",
		len(used), len(in.Summaries), s.Threshold, len(in.Documents))
	if len(used) == 0 && len(in.Documents) == 0 {
		run.Logf("Report Gen Error: no summaries or reference documents available for context")
		return Draft{}, ErrNoContext
	}
	summaries, documents := Context(used, in.Documents)
	prompt := s.GenerationPrompt(in.Topic, summaries, documents)
	_ = run.WriteArtifact("report_prompt_initial.txt", prompt)
	log.Debug().Int("chars", len(prompt)).Int("est_tokens", budget.EstimateTokens(prompt)).Msg("report prompt built")

	content, last, err := s.run(ctx, run, pass{
		stage:   stageGenerate,
		label:   "Report generation",
		tag:     parse.TagReport,
		prompt:  prompt,
		timeout: orDefault(s.GenerateTimeout, 3000*time.Second),
		rawFile: "report_response_initial_raw.txt",
	})
	if err != nil {
		if last == "" {
			last = "Original cleaned response was empty."
		}
		_ = run.WriteArtifact("report_INITIAL_FAILED_PARSE.txt", last)
		run.Logf("Report generation failed after %d attempts: %v", max(s.Attempts, 1), err)
		return Draft{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	_ = run.WriteArtifact("research_report_initial_raw.txt", content)
	log.Info().Int("summaries", len(used)).Int("documents", len(in.Documents)).Msg("initial report generated")
	return Draft{Topic: in.Topic, Report: content, Used: used, Documents: in.Documents}, nil
}

// Refine runs the presentation pass. On failure the caller falls back to
// Fallback(d).
func (s *Synthesizer) Refine(ctx context.Context, run *runctx.Run, d Draft) (string, error) {
	prompt := RefinementPrompt(d.Topic, d.Report, d.References())
	_ = run.WriteArtifact("report_prompt_refinement.txt", prompt)
	content, last, err := s.run(ctx, run, pass{
		stage:   stageRefine,
		label:   "Report refinement",
		tag:     parse.TagRefinedReport,
		prompt:  prompt,
		timeout: orDefault(s.RefineTimeout, 1200*time.Second),
		rawFile: "report_response_refinement_raw.txt",
	})
	if err != nil {
		if last == "" {
			last = "Original cleaned response was empty."
		}
		_ = run.WriteArtifact("report_REFINED_FAILED_PARSE.txt", last)
		return "", fmt.Errorf("refine report: %w", err)
	}
	return content, nil
}

// Fallback is the pass-1 report with the references appended.
func Fallback(d Draft) string {
	return strings.TrimRight(d.Report, "\n") + "\n\n" + d.References()
}

// Synthesize generates the report and, unless skipRefine is set, refines it.
// A failed refinement degrades to Fallback; only generation errors are
// returned.
func (s *Synthesizer) Synthesize(ctx context.Context, run *runctx.Run, in Input, skipRefine bool) (string, error) {
	d, err := s.Generate(ctx, run, in)
	if err != nil {
		return "", err
	}
	if skipRefine {
		run.Logf("Refinement skipped; using initial report with references")
		return Fallback(d), nil
	}
	refined, err := s.Refine(ctx, run, d)
	if err != nil {
		run.Logf("Refinement failed (%v); using initial report with references", err)
		log.Warn().Err(err).Msg("report refinement failed, using initial report")
		return Fallback(d), nil
	}
	return refined, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
