package llm

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal surface the pipeline needs from a chat backend. It
// mirrors go-openai so any OpenAI-compatible server or a test fake fits.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is optional; callers type-assert for it.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to Client and ModelLister.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAIProvider builds a provider for mc. The HTTP client carries no
// timeout of its own; every call is bounded by its context.
func NewOpenAIProvider(mc ModelConfig, hc *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(mc.APIKey)
	if base := NormalizeBaseURL(mc.Endpoint); base != "" {
		cfg.BaseURL = base
	}
	if hc == nil {
		hc = &http.Client{}
	}
	cfg.HTTPClient = hc
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// Preflight lists models when the client supports it and reports whether the
// configured model is served. It never fails the run.
func Preflight(ctx context.Context, c Client, model string) (available bool, err error) {
	lister, ok := c.(ModelLister)
	if !ok {
		return false, nil
	}
	list, err := lister.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list.Models {
		if m.ID == model {
			return true, nil
		}
	}
	return false, nil
}
