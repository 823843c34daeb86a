package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the optional --config file schema. Nested sections map onto
// the flag groups.
type FileConfig struct {
	Topic    string   `yaml:"topic" json:"topic"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Guidance string   `yaml:"guidance" json:"guidance"`

	LLM struct {
		ModelsFile string `yaml:"modelsFile" json:"modelsFile"`
		Model      string `yaml:"model" json:"model"`
	} `yaml:"llm" json:"llm"`

	Search struct {
		API      string `yaml:"api" json:"api"`
		File     string `yaml:"file" json:"file"`
		FromDate string `yaml:"fromDate" json:"fromDate"`
		ToDate   string `yaml:"toDate" json:"toDate"`
		Combine  bool   `yaml:"combineKeywords" json:"combineKeywords"`
	} `yaml:"search" json:"search"`

	Max struct {
		WebResults        int `yaml:"webResults" json:"webResults"`
		RedditResults     int `yaml:"redditResults" json:"redditResults"`
		RedditComments    int `yaml:"redditComments" json:"redditComments"`
		PerKeywordResults int `yaml:"perKeywordResults" json:"perKeywordResults"`
	} `yaml:"max" json:"max"`

	ScoreThreshold *int `yaml:"scoreThreshold" json:"scoreThreshold"`
	NoReddit       bool `yaml:"noReddit" json:"noReddit"`
	SkipRefinement bool `yaml:"skipRefinement" json:"skipRefinement"`

	References struct {
		Files     []string `yaml:"files" json:"files"`
		Folder    string   `yaml:"folder" json:"folder"`
		Summarize bool     `yaml:"summarize" json:"summarize"`
	} `yaml:"references" json:"references"`

	DirectArticles string `yaml:"directArticles" json:"directArticles"`

	Paths struct {
		Archive string `yaml:"archive" json:"archive"`
		Output  string `yaml:"output" json:"output"`
	} `yaml:"paths" json:"paths"`

	Cache struct {
		Dir    string        `yaml:"dir" json:"dir"`
		MaxAge time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear  bool          `yaml:"clear" json:"clear"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig fills fields still unset after flags and env. Numeric
// fields count as unset when zero, the score threshold when negative;
// booleans can only be switched on.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if *dst == 0 && v > 0 {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}

	str(&cfg.Topic, fc.Topic)
	if len(cfg.Keywords) == 0 && len(fc.Keywords) > 0 {
		cfg.Keywords = append([]string{}, fc.Keywords...)
	}
	str(&cfg.Guidance, fc.Guidance)
	str(&cfg.ModelsFile, fc.LLM.ModelsFile)
	str(&cfg.ModelKey, fc.LLM.Model)

	str(&cfg.SearchAPI, fc.Search.API)
	str(&cfg.SearchFile, fc.Search.File)
	str(&cfg.FromDate, fc.Search.FromDate)
	str(&cfg.ToDate, fc.Search.ToDate)
	flag(&cfg.CombineKeywords, fc.Search.Combine)

	num(&cfg.MaxWebResults, fc.Max.WebResults)
	num(&cfg.MaxRedditResults, fc.Max.RedditResults)
	num(&cfg.MaxRedditComments, fc.Max.RedditComments)
	num(&cfg.PerKeywordResults, fc.Max.PerKeywordResults)
	if cfg.ScoreThreshold < 0 && fc.ScoreThreshold != nil {
		cfg.ScoreThreshold = *fc.ScoreThreshold
	}

	flag(&cfg.NoReddit, fc.NoReddit)
	flag(&cfg.SkipRefinement, fc.SkipRefinement)
	if len(cfg.ReferenceDocs) == 0 && len(fc.References.Files) > 0 {
		cfg.ReferenceDocs = append([]string{}, fc.References.Files...)
	}
	str(&cfg.ReferenceDocsFolder, fc.References.Folder)
	flag(&cfg.ReferenceDocsSummarize, fc.References.Summarize)
	str(&cfg.DirectArticles, fc.DirectArticles)

	str(&cfg.ArchiveDir, fc.Paths.Archive)
	str(&cfg.OutputDir, fc.Paths.Output)
	str(&cfg.CacheDir, fc.Cache.Dir)
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.Verbose, fc.Verbose)
}
