package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/budget"
	"github.com/hyperifyio/reportbuilder/internal/cache"
	"github.com/hyperifyio/reportbuilder/internal/discover"
	"github.com/hyperifyio/reportbuilder/internal/extract"
	"github.com/hyperifyio/reportbuilder/internal/fetch"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/refdocs"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
	"github.com/hyperifyio/reportbuilder/internal/scrape"
	"github.com/hyperifyio/reportbuilder/internal/search"
	"github.com/hyperifyio/reportbuilder/internal/summarize"
	"github.com/hyperifyio/reportbuilder/internal/synth"
)

// ErrNoUsableContent is returned when a stage leaves nothing to build a
// report from. The CLI maps it to exit code 2.
var ErrNoUsableContent = errors.New("no usable content")

// App wires the pipeline for one configuration. Each Run gets its own
// runctx.Run.
type App struct {
	cfg   Config
	model llm.ModelConfig

	client     llm.Client
	httpClient *http.Client
	pages      *cache.Pages
	primary    search.Provider
	fallback   search.Provider
	sessions   scrape.SessionFactory
	sleep      retry.Sleeper
	now        func() time.Time
}

// Option customizes an App; tests use them to swap network collaborators.
type Option func(*App)

// WithLLMClient replaces the OpenAI-compatible client.
func WithLLMClient(c llm.Client) Option { return func(a *App) { a.client = c } }

// WithSearchProviders replaces the primary and fallback providers.
func WithSearchProviders(primary, fallback search.Provider) Option {
	return func(a *App) { a.primary, a.fallback = primary, fallback }
}

// WithSessions replaces the browser session factory.
func WithSessions(f scrape.SessionFactory) Option { return func(a *App) { a.sessions = f } }

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(a *App) { a.httpClient = hc } }

// WithSleeper replaces every pause and retry delay.
func WithSleeper(s retry.Sleeper) Option { return func(a *App) { a.sleep = s } }

// WithClock replaces the time source used to name the run.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

// New resolves the model configuration and builds the collaborators. The
// model list preflight is best-effort.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	ApplyDefaults(&cfg)
	models, err := llm.LoadModels(cfg.ModelsFile)
	if err != nil {
		return nil, err
	}
	mc, err := llm.Select(models, cfg.ModelKey, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, model: mc, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = newHTTPClient()
	}
	if a.client == nil {
		a.client = llm.NewOpenAIProvider(mc, a.httpClient)
	}
	if a.primary == nil && a.fallback == nil {
		a.primary, a.fallback = a.providers()
	}
	if a.sessions == nil {
		a.sessions = scrape.ChromeFactory{ExecPath: cfg.ChromePath}
	}
	if cfg.CacheDir != "" {
		a.pages = &cache.Pages{Dir: cfg.CacheDir}
		if cfg.CacheClear {
			if err := a.pages.Clear(); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := a.pages.PurgeOlderThan(cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("purged", n).Msg("cache entries purged")
			}
		}
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	available, err := llm.Preflight(pctx, a.client, mc.Model)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
	case available:
		log.Info().Str("model", mc.Model).Msg("LLM model available")
	default:
		log.Debug().Str("model", mc.Model).Msg("LLM model not listed by server")
	}
	return a, nil
}

func (a *App) providers() (search.Provider, search.Provider) {
	if a.cfg.SearchFile != "" {
		return &search.FileProvider{Path: a.cfg.SearchFile}, nil
	}
	google := &search.Google{APIKey: a.cfg.GoogleAPIKey, CSEID: a.cfg.GoogleCSEID, HTTPClient: a.httpClient}
	brave := &search.Brave{APIKey: a.cfg.BraveAPIKey, HTTPClient: a.httpClient}
	if a.cfg.SearchAPI == "brave" {
		return brave, google
	}
	return google, brave
}

// Model returns the selected model configuration.
func (a *App) Model() llm.ModelConfig { return a.model }

// Result locates the outputs of a completed run.
type Result struct {
	Markdown   string
	PDF        string
	ArchiveDir string
}

// Run executes the pipeline: sources, scraping, summaries, report.
func (a *App) Run(ctx context.Context) (Result, error) {
	cfg := a.cfg
	run, err := runctx.New(cfg.ArchiveDir, cfg.Topic, a.now(), a.model)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := run.Close(); err != nil {
			log.Warn().Err(err).Msg("closing run archive")
		}
	}()
	res := Result{ArchiveDir: run.ArchiveDir}
	log.Info().Str("run", run.ID).Str("archive", run.ArchiveDir).Str("model", a.model.Key).Msg("run started")
	run.Logf("Run %s: topic=%q model=%s search=%s", run.ID, cfg.Topic, a.model.Key, cfg.SearchAPI)

	caller := &llm.Caller{Client: a.client, Model: a.model, Sleep: a.sleep, Metrics: run.Metrics, Audit: run.Logf}
	fetcher := &fetch.Client{
		HTTPClient:  a.httpClient,
		MaxAttempts: 2,
		RetryDelay:  2 * time.Second,
		Cache:       a.pages,
		Sleep:       a.sleep,
	}

	var direct []string
	if cfg.DirectArticles != "" {
		direct, err = loadDirectArticles(cfg.DirectArticles)
		if err != nil {
			if cfg.NoSearch {
				return res, err
			}
			run.Logf("Warning: %v; continuing without direct articles", err)
		} else {
			run.Logf("Loaded %d direct article URLs", len(direct))
		}
	}
	docs := refdocs.Load(run, cfg.ReferenceDocs, cfg.ReferenceDocsFolder)
	queries := cfg.Queries()

	sources := direct
	if !cfg.NoSearch {
		resolver := discover.New(caller, fetcher)
		resolver.Sleep = a.sleep
		found := resolver.Discover(ctx, run, queries, discover.Options{NoReddit: cfg.NoReddit})
		sources = mergeSources(direct, found)
	}
	if cfg.NoReddit {
		sources = dropRedditSources(sources)
	}
	run.Logf("Sources to process: %d", len(sources))
	if len(sources) == 0 && len(docs) == 0 {
		run.Logf("Error: no sources and no reference documents")
		return res, fmt.Errorf("%w: no sources and no reference documents", ErrNoUsableContent)
	}

	records := a.dispatcher(queries, fetcher).Scrape(ctx, run, sources, direct)
	if len(records) == 0 && len(docs) == 0 {
		run.Logf("Error: nothing scraped and no reference documents")
		return res, fmt.Errorf("%w: nothing scraped and no reference documents", ErrNoUsableContent)
	}

	items := make([]summarize.Item, 0, len(records)+len(docs))
	for _, r := range records {
		items = append(items, summarize.Item{SourceID: r.URL, Type: summarize.TypeScraped, Content: r.Content})
	}
	var verbatim []refdocs.Document
	if cfg.ReferenceDocsSummarize {
		for _, d := range docs {
			items = append(items, summarize.Item{SourceID: d.Path, Type: summarize.TypeReference, Content: d.Content})
		}
	} else {
		verbatim = docs
	}
	summarizer := summarize.New(caller, a.model.MaxTokensOr(budget.DefaultMaxTokens), cfg.Guidance)
	summarizer.Sleep = a.sleep
	summaries := summarizer.Summarize(ctx, run, items, cfg.Topic)
	writeManifest(run, buildManifest(run, cfg, sources, records, summaries, a.now()))
	if countValid(summaries) == 0 && len(verbatim) == 0 {
		run.Logf("Error: no valid summaries and no verbatim reference documents")
		return res, fmt.Errorf("%w: no valid summaries and no reference documents", ErrNoUsableContent)
	}

	s := synth.New(caller, cfg.Guidance)
	s.Threshold = cfg.ScoreThreshold
	s.Sleep = a.sleep
	report, err := s.Synthesize(ctx, run, synth.Input{Topic: cfg.Topic, Summaries: summaries, Documents: verbatim}, cfg.SkipRefinement)
	if err != nil {
		return res, err
	}
	pub, err := synth.Publish(run, cfg.OutputDir, report)
	if err != nil {
		return res, err
	}
	res.Markdown, res.PDF = pub.Markdown, pub.PDF
	log.Info().Str("markdown", pub.Markdown).Str("pdf", pub.PDF).Int("sources", len(sources)).
		Int("records", len(records)).Int("summaries", len(summaries)).Msg("report written")
	return res, nil
}

func (a *App) dispatcher(queries []string, fetcher *fetch.Client) *scrape.Dispatcher {
	article := &scrape.Article{
		Fetcher:   fetcher,
		Extractor: extract.ReadabilityExtractor{},
		PauseMin:  1500 * time.Millisecond,
		PauseMax:  3 * time.Second,
		Sleep:     a.sleep,
	}
	gw := search.NewGateway(a.primary, a.fallback)
	gw.Sleep = a.sleep
	return &scrape.Dispatcher{
		Direct: &scrape.Direct{Article: article},
		Reddit: &scrape.Reddit{
			Sessions:       a.sessions,
			Queries:        queries,
			MaxPosts:       a.cfg.MaxRedditResults,
			MaxComments:    a.cfg.MaxRedditComments,
			SearchPauseMin: time.Second,
			SearchPauseMax: 2 * time.Second,
			PostPauseMin:   1500 * time.Millisecond,
			PostPauseMax:   3 * time.Second,
			Sleep:          a.sleep,
		},
		Website: &scrape.Website{
			Search:        gw,
			Article:       article,
			Queries:       queries,
			PerQueryLimit: a.cfg.SiteQueryLimit(),
			MaxResults:    a.cfg.MaxWebResults,
			Window:        search.DateRange{From: a.cfg.FromDate, To: a.cfg.ToDate},
			PauseMin:      time.Second,
			PauseMax:      2 * time.Second,
			Sleep:         a.sleep,
		},
		SearchEnabled: !a.cfg.NoSearch,
		PauseMin:      2 * time.Second,
		PauseMax:      5 * time.Second,
		Sleep:         a.sleep,
	}
}

func countValid(records []summarize.Record) int {
	n := 0
	for _, r := range records {
		if !r.IsError() {
			n++
		}
	}
	return n
}

func dropRedditSources(in []string) []string {
	var out []string
	for _, s := range in {
		if scrape.IsReddit(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Describe renders the effective settings for --verbose startup logging.
func Describe(cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "topic=%q queries=%q search=%s", cfg.Topic, cfg.Queries(), cfg.SearchAPI)
	if cfg.NoSearch {
		b.WriteString(" no-search")
	}
	if cfg.FromDate != "" || cfg.ToDate != "" {
		fmt.Fprintf(&b, " window=%s..%s", cfg.FromDate, cfg.ToDate)
	}
	fmt.Fprintf(&b, " threshold=%d web=%d reddit=%d/%d", cfg.ScoreThreshold, cfg.MaxWebResults, cfg.MaxRedditResults, cfg.MaxRedditComments)
	return b.String()
}
