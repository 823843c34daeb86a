package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(os.Getenv(key))
		}
	}
	setString(&cfg.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&cfg.GoogleCSEID, "GOOGLE_CSE_ID")
	setString(&cfg.BraveAPIKey, "BRAVE_API_KEY")
	setString(&cfg.DefaultModel, "DEFAULT_MODEL_CONFIG")
	setString(&cfg.ModelsFile, "MODELS_FILE")
	setString(&cfg.SearchAPI, "SEARCH_API")
	setString(&cfg.SearchFile, "SEARCH_FILE")
	setString(&cfg.ArchiveDir, "ARCHIVE_DIR")
	setString(&cfg.OutputDir, "OUTPUT_DIR")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.ChromePath, "CHROME_PATH")

	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}
	if cfg.ScoreThreshold < 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SCORE_THRESHOLD"))); err == nil && n >= 0 {
			cfg.ScoreThreshold = n
		}
	}

	setBool := func(dst *bool, key string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.NoReddit, "NO_REDDIT")
	setBool(&cfg.SkipRefinement, "SKIP_REFINEMENT")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
}
