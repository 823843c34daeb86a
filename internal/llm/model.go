package llm

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModelKey is used when neither an override nor DEFAULT_MODEL_CONFIG
// names a configuration.
const DefaultModelKey = "default_model"

// ModelConfig is one named entry of ai_models.yml.
type ModelConfig struct {
	Key         string   `yaml:"-"`
	APIKey      string   `yaml:"api_key"`
	Endpoint    string   `yaml:"api_endpoint"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
	TopP        *float32 `yaml:"top_p,omitempty"`
	// TopK is accepted for compatibility with existing model files; the
	// OpenAI request has no field for it so it is never sent.
	TopK *int `yaml:"top_k,omitempty"`
}

// MaxTokensOr returns the configured max_tokens or def when unset.
func (m ModelConfig) MaxTokensOr(def int) int {
	if m.MaxTokens != nil && *m.MaxTokens > 0 {
		return *m.MaxTokens
	}
	return def
}

// LoadModels reads a YAML map of model configurations keyed by name.
func LoadModels(path string) (map[string]ModelConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}
	return ParseModels(b)
}

// ParseModels decodes ai_models.yml content.
func ParseModels(b []byte) (map[string]ModelConfig, error) {
	var raw map[string]ModelConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse models file: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("models file is empty or not a mapping")
	}
	for k, v := range raw {
		v.Key = k
		raw[k] = v
	}
	return raw, nil
}

// Select resolves the model configuration by precedence: override, then
// envDefault, then DefaultModelKey. The chosen entry must name a model.
func Select(models map[string]ModelConfig, override, envDefault string) (ModelConfig, error) {
	key := DefaultModelKey
	switch {
	case strings.TrimSpace(override) != "":
		key = strings.TrimSpace(override)
	case strings.TrimSpace(envDefault) != "":
		key = strings.TrimSpace(envDefault)
	}
	mc, ok := models[key]
	if !ok {
		names := make([]string, 0, len(models))
		for k := range models {
			names = append(names, k)
		}
		sort.Strings(names)
		return ModelConfig{}, fmt.Errorf("model config %q not found (available: %s)", key, strings.Join(names, ", "))
	}
	if strings.TrimSpace(mc.Model) == "" {
		return ModelConfig{}, fmt.Errorf("model config %q has no model name", key)
	}
	mc.Key = key
	return mc, nil
}

// NormalizeBaseURL turns an api_endpoint that may already point at the chat
// completions route into the base URL the client expects.
func NormalizeBaseURL(endpoint string) string {
	s := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	s = strings.TrimSuffix(s, "/chat/completions")
	return strings.TrimRight(s, "/")
}
