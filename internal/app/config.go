package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/reportbuilder/internal/search"
)

// Defaults shared by flags and the file overlay.
const (
	DefaultModelsFile        = "ai_models.yml"
	DefaultSearchAPI         = "google"
	DefaultArchiveDir        = "archive"
	DefaultOutputDir         = "outputs"
	DefaultCacheDir          = ".reportbuilder-cache"
	DefaultMaxWebResults     = 3
	DefaultMaxRedditResults  = 5
	DefaultMaxRedditComments = 5
	DefaultScoreThreshold    = 5
)

// Config holds runtime configuration for one pipeline run.
type Config struct {
	Topic           string
	Keywords        []string
	CombineKeywords bool
	Guidance        string

	// LLM
	ModelsFile string
	// ModelKey is the --llm-model override; DefaultModel comes from
	// DEFAULT_MODEL_CONFIG.
	ModelKey     string
	DefaultModel string

	// Search
	SearchAPI    string
	GoogleAPIKey string
	GoogleCSEID  string
	BraveAPIKey  string
	// SearchFile swaps both providers for an offline JSON file.
	SearchFile string
	FromDate   string
	ToDate     string

	// Limits
	MaxWebResults     int
	MaxRedditResults  int
	MaxRedditComments int
	// PerKeywordResults is the result count per site query. Zero means
	// MaxWebResults.
	PerKeywordResults int
	// ScoreThreshold is the minimum summary score used for the report.
	// Negative means unset; ApplyDefaults turns it into 5.
	ScoreThreshold int

	// Inputs
	DirectArticles         string
	NoSearch               bool
	NoReddit               bool
	ReferenceDocs          []string
	ReferenceDocsFolder    string
	ReferenceDocsSummarize bool
	SkipRefinement         bool

	// Paths and behavior
	ArchiveDir  string
	OutputDir   string
	CacheDir    string
	CacheMaxAge time.Duration
	CacheClear  bool
	ChromePath  string
	Verbose     bool
}

// Queries returns the search queries derived from the keywords.
func (c Config) Queries() []string { return BuildQueries(c.Keywords, c.CombineKeywords) }

// SiteQueryLimit is the result count requested per site: query.
func (c Config) SiteQueryLimit() int {
	if c.CombineKeywords || c.PerKeywordResults <= 0 {
		return c.MaxWebResults
	}
	return c.PerKeywordResults
}

// ApplyDefaults fills zero values that have a documented default.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.ModelsFile == "" {
		cfg.ModelsFile = DefaultModelsFile
	}
	if cfg.SearchAPI == "" {
		cfg.SearchAPI = DefaultSearchAPI
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = DefaultArchiveDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.MaxWebResults == 0 {
		cfg.MaxWebResults = DefaultMaxWebResults
	}
	if cfg.MaxRedditResults == 0 {
		cfg.MaxRedditResults = DefaultMaxRedditResults
	}
	if cfg.MaxRedditComments == 0 {
		cfg.MaxRedditComments = DefaultMaxRedditComments
	}
	if cfg.ScoreThreshold < 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
}

// ValidateConfig checks required settings and ranges.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Topic) == "" {
		return errors.New("config: topic is required")
	}
	if !cfg.NoSearch && len(cfg.Queries()) == 0 {
		return errors.New("config: keywords are required unless --no-search is set")
	}
	if cfg.NoSearch && cfg.DirectArticles == "" && len(cfg.ReferenceDocs) == 0 && cfg.ReferenceDocsFolder == "" {
		return errors.New("config: --no-search requires --direct-articles, --reference-docs or --reference-docs-folder")
	}
	switch cfg.SearchAPI {
	case "google", "brave":
	default:
		return fmt.Errorf("config: search api must be google or brave, got %q", cfg.SearchAPI)
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 10 {
		return fmt.Errorf("config: score threshold %d outside 0-10", cfg.ScoreThreshold)
	}
	if cfg.MaxWebResults < 0 || cfg.MaxRedditResults < 0 || cfg.MaxRedditComments < 0 || cfg.PerKeywordResults < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	w := search.DateRange{From: cfg.FromDate, To: cfg.ToDate}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
