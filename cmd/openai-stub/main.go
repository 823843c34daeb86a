// Command openai-stub serves a minimal OpenAI-compatible API that answers
// every reportbuilder stage with canned tagged output, for offline runs.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

const (
	refsStart = "--- START REFERENCES ---\n"
	refsEnd   = "--- END REFERENCES ---"
)

// respond picks the canned answer for a prompt by the stage markers each
// prompt carries.
func respond(prompt string) string {
	switch {
	case strings.Contains(prompt, refsStart):
		refs := ""
		if i := strings.Index(prompt, refsStart); i >= 0 {
			refs = prompt[i+len(refsStart):]
			if j := strings.Index(refs, refsEnd); j >= 0 {
				refs = refs[:j]
			}
		}
		return "<refinedReport>\n# Stub Report\n\n## Executive Summary\n\nThe sources agree on the main points.\n\n## Findings\n\n- First finding\n- Second finding\n\n" + refs + "</refinedReport>"
	case strings.Contains(prompt, "<toolScrapeSummary>"):
		return "<toolScrapeSummary>The text describes the topic with several concrete figures.</toolScrapeSummary>\n<summaryScore>7</summaryScore>"
	case strings.Contains(prompt, "<toolWebsites>"):
		return "<toolWebsites>\nexample.com\nr/technology\n</toolWebsites>"
	case strings.Contains(prompt, "<reportContent>"):
		return "<reportContent>\nIntroduction to the topic.\n\nThe summaries point to steady growth (Summary 1).\n\nIn conclusion, more data is needed.\n</reportContent>"
	default:
		return ""
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		content := respond(req.Messages[len(req.Messages)-1].Content)
		if content == "" {
			http.Error(w, "unrecognized prompt", http.StatusBadRequest)
			return
		}
		log.Debug().Int("chars", len(content)).Msg("stub completion")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": model,
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
