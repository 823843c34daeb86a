package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/hyperifyio/reportbuilder/internal/runctx"
	"github.com/hyperifyio/reportbuilder/internal/scrape"
	"github.com/hyperifyio/reportbuilder/internal/summarize"
)

// manifestRecord is one scraped record with the digest of its exact content.
type manifestRecord struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Chars  int    `json:"chars"`
}

type manifestSummary struct {
	SourceID string `json:"source_id"`
	Type     string `json:"type"`
	Score    int    `json:"score"`
	Error    bool   `json:"error,omitempty"`
}

// manifest summarizes a run for later audit: which model ran, what was
// scraped and how every summary scored.
type manifest struct {
	RunID       string            `json:"run_id"`
	Topic       string            `json:"topic"`
	ModelKey    string            `json:"model_key"`
	Model       string            `json:"model"`
	Queries     []string          `json:"queries"`
	Sources     []string          `json:"sources"`
	Records     []manifestRecord  `json:"records"`
	Summaries   []manifestSummary `json:"summaries"`
	Threshold   int               `json:"score_threshold"`
	SeenURLs    int               `json:"seen_urls"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func buildManifest(run *runctx.Run, cfg Config, sources []string, records []scrape.Record, summaries []summarize.Record, now time.Time) manifest {
	m := manifest{
		RunID:       run.ID,
		Topic:       cfg.Topic,
		ModelKey:    run.Model.Key,
		Model:       run.Model.Model,
		Queries:     cfg.Queries(),
		Sources:     sources,
		Threshold:   cfg.ScoreThreshold,
		SeenURLs:    run.SeenCount(),
		GeneratedAt: now.UTC(),
	}
	for _, r := range records {
		m.Records = append(m.Records, manifestRecord{URL: r.URL, SHA256: computeSHA256Hex(r.Content), Chars: utf8.RuneCountInString(r.Content)})
	}
	for _, s := range summaries {
		m.Summaries = append(m.Summaries, manifestSummary{SourceID: s.SourceID, Type: s.Type, Score: s.Score, Error: s.IsError()})
	}
	return m
}

// writeManifest stores manifest.json in the run archive. Failures are logged
// by the run and otherwise ignored.
func writeManifest(run *runctx.Run, m manifest) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		run.Logf("Warning: encoding manifest: %v", err)
		return
	}
	_ = run.WriteArtifact("manifest.json", string(b))
}
