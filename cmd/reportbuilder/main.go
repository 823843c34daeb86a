package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/synth"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode maps pipeline errors to the process status: 2 when there was
// nothing to build a report from, 1 for every other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoUsableContent), errors.Is(err, synth.ErrNoContext):
		return 2
	default:
		return 1
	}
}

type flagValues struct {
	envFile       string
	configPath    string
	keywords      string
	referenceDocs []string
	cfg           app.Config
}

func newRootCmd() *cobra.Command { return buildRootCmd(&flagValues{}) }

func buildRootCmd(fv *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reportbuilder",
		Short:         "Research a topic on the web and write a sourced report",
		Long:          "Discovers sources for the keywords with an LLM, scrapes websites and subreddits, scores per-source summaries and writes a Markdown and PDF report.",
		Version:       app.VersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				log.Debug().Str("config", app.Describe(cfg)).Msg("effective settings")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			res, err := run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Markdown)
			if res.PDF != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.PDF)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&fv.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&fv.configPath, "config", "", "YAML or JSON config file; flags and env take precedence")

	f.StringVar(&fv.keywords, "keywords", "", "comma-separated search keywords")
	f.StringVar(&fv.cfg.Topic, "topic", "", "research topic for the report")
	f.StringVar(&fv.cfg.Guidance, "guidance", "", "extra guidance passed to summaries and the report")
	f.BoolVar(&fv.cfg.CombineKeywords, "combine-keywords", false, "search all keywords as one query")

	f.StringVar(&fv.cfg.ModelKey, "llm-model", "", "model configuration key in the models file")
	f.StringVar(&fv.cfg.ModelsFile, "models-file", app.DefaultModelsFile, "YAML file of model configurations")

	f.StringVar(&fv.cfg.SearchAPI, "api", app.DefaultSearchAPI, "primary search API: google or brave")
	f.StringVar(&fv.cfg.SearchFile, "search-file", "", "offline JSON search results used instead of both APIs")
	f.StringVar(&fv.cfg.FromDate, "from_date", "", "only results published on or after YYYY-MM-DD")
	f.StringVar(&fv.cfg.ToDate, "to_date", "", "only results published on or before YYYY-MM-DD")

	f.IntVar(&fv.cfg.MaxWebResults, "max-web-results", app.DefaultMaxWebResults, "articles scraped per website")
	f.IntVar(&fv.cfg.MaxRedditResults, "max-reddit-results", app.DefaultMaxRedditResults, "posts scraped per subreddit")
	f.IntVar(&fv.cfg.MaxRedditComments, "max-reddit-comments", app.DefaultMaxRedditComments, "comments kept per post")
	f.IntVar(&fv.cfg.PerKeywordResults, "per-keyword-results", 0, "results requested per keyword query (default max-web-results)")
	f.IntVar(&fv.cfg.ScoreThreshold, "score-threshold", app.DefaultScoreThreshold, "minimum summary score (0-10) used in the report")

	f.StringVar(&fv.cfg.DirectArticles, "direct-articles", "", "file with one article URL per line")
	f.BoolVar(&fv.cfg.NoSearch, "no-search", false, "skip discovery and search; use direct articles and reference documents only")
	f.BoolVar(&fv.cfg.NoReddit, "no-reddit", false, "exclude Reddit sources")
	f.StringSliceVar(&fv.referenceDocs, "reference-docs", nil, "reference documents (.txt, .pdf, .docx)")
	f.StringVar(&fv.cfg.ReferenceDocsFolder, "reference-docs-folder", "", "folder of reference documents")
	f.BoolVar(&fv.cfg.ReferenceDocsSummarize, "reference-docs-summarize", false, "summarize reference documents instead of passing them verbatim")
	f.BoolVar(&fv.cfg.SkipRefinement, "skip_refinement", false, "skip the report refinement pass")

	f.StringVar(&fv.cfg.ArchiveDir, "archive-dir", app.DefaultArchiveDir, "directory for per-run archives")
	f.StringVar(&fv.cfg.OutputDir, "output-dir", app.DefaultOutputDir, "directory for final reports")
	f.StringVar(&fv.cfg.CacheDir, "cache-dir", app.DefaultCacheDir, "page cache directory; empty disables caching")
	f.DurationVar(&fv.cfg.CacheMaxAge, "cache-max-age", 0, "purge cached pages older than this; 0 keeps everything")
	f.BoolVar(&fv.cfg.CacheClear, "cache-clear", false, "clear the page cache before running")
	f.StringVar(&fv.cfg.ChromePath, "chrome-path", "", "Chrome or Chromium binary used for Reddit")
	f.BoolVarP(&fv.cfg.Verbose, "verbose", "v", false, "debug logging")
	return cmd
}

// resolveConfig layers configuration: explicit flags, then environment, then
// the config file, then flag defaults.
func resolveConfig(cmd *cobra.Command, fv *flagValues) (app.Config, error) {
	if err := app.LoadEnvFiles(fv.envFile); err != nil {
		return app.Config{}, fmt.Errorf("load %s: %w", fv.envFile, err)
	}
	changed := cmd.Flags().Changed
	cfg := app.Config{ScoreThreshold: -1}

	str := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	num := func(name string, dst *int, v int) {
		if changed(name) {
			*dst = v
		}
	}
	flag := func(name string, dst *bool, v bool) {
		if changed(name) {
			*dst = v
		}
	}
	in := fv.cfg
	if changed("keywords") {
		cfg.Keywords = app.SplitKeywords(fv.keywords)
	}
	if changed("reference-docs") {
		cfg.ReferenceDocs = fv.referenceDocs
	}
	str("topic", &cfg.Topic, in.Topic)
	str("guidance", &cfg.Guidance, in.Guidance)
	flag("combine-keywords", &cfg.CombineKeywords, in.CombineKeywords)
	str("llm-model", &cfg.ModelKey, in.ModelKey)
	str("models-file", &cfg.ModelsFile, in.ModelsFile)
	str("api", &cfg.SearchAPI, in.SearchAPI)
	str("search-file", &cfg.SearchFile, in.SearchFile)
	str("from_date", &cfg.FromDate, in.FromDate)
	str("to_date", &cfg.ToDate, in.ToDate)
	num("max-web-results", &cfg.MaxWebResults, in.MaxWebResults)
	num("max-reddit-results", &cfg.MaxRedditResults, in.MaxRedditResults)
	num("max-reddit-comments", &cfg.MaxRedditComments, in.MaxRedditComments)
	num("per-keyword-results", &cfg.PerKeywordResults, in.PerKeywordResults)
	num("score-threshold", &cfg.ScoreThreshold, in.ScoreThreshold)
	str("direct-articles", &cfg.DirectArticles, in.DirectArticles)
	flag("no-search", &cfg.NoSearch, in.NoSearch)
	flag("no-reddit", &cfg.NoReddit, in.NoReddit)
	str("reference-docs-folder", &cfg.ReferenceDocsFolder, in.ReferenceDocsFolder)
	flag("reference-docs-summarize", &cfg.ReferenceDocsSummarize, in.ReferenceDocsSummarize)
	flag("skip_refinement", &cfg.SkipRefinement, in.SkipRefinement)
	str("archive-dir", &cfg.ArchiveDir, in.ArchiveDir)
	str("output-dir", &cfg.OutputDir, in.OutputDir)
	str("cache-dir", &cfg.CacheDir, in.CacheDir)
	if changed("cache-max-age") {
		cfg.CacheMaxAge = in.CacheMaxAge
	}
	flag("cache-clear", &cfg.CacheClear, in.CacheClear)
	str("chrome-path", &cfg.ChromePath, in.ChromePath)
	flag("verbose", &cfg.Verbose, in.Verbose)

	app.ApplyEnvToConfig(&cfg)
	if fv.configPath != "" {
		fc, err := app.LoadConfigFile(fv.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config %s: %w", fv.configPath, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if cfg.CacheDir == "" && !changed("cache-dir") {
		cfg.CacheDir = app.DefaultCacheDir
	}
	app.ApplyDefaults(&cfg)
	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg app.Config) (app.Result, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return app.Result{}, fmt.Errorf("init app: %w", err)
	}
	return a.Run(ctx)
}
