package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reportbuilder/internal/metrics"
	"github.com/hyperifyio/reportbuilder/internal/retry"
)

var (
	// ErrMalformedResponse means the backend answered without usable content.
	ErrMalformedResponse = errors.New("llm: malformed response")
	// ErrRateLimited means the backend kept answering 429 after the single
	// allowed retry.
	ErrRateLimited = errors.New("llm: rate limited")
)

// DefaultRateLimitWait is how long a 429 is waited out before the one retry.
const DefaultRateLimitWait = 61 * time.Second

// Completer sends one prompt and returns the raw text of the first choice.
type Completer interface {
	Complete(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error)
}

// Caller implements Completer on top of a Client using the selected model
// configuration.
type Caller struct {
	Client        Client
	Model         ModelConfig
	RateLimitWait time.Duration
	Sleep         retry.Sleeper
	Metrics       *metrics.Recorder
	// Audit receives one line per notable event; may be nil.
	Audit func(format string, args ...any)
}

func (c *Caller) request(prompt string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.Model.Model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	}
	if c.Model.Temperature != nil {
		req.Temperature = *c.Model.Temperature
	}
	if c.Model.MaxTokens != nil {
		req.MaxTokens = *c.Model.MaxTokens
	}
	if c.Model.TopP != nil {
		req.TopP = *c.Model.TopP
	}
	return req
}

// Complete issues the request under a per-call timeout. A 429 response is
// waited out once; any other failure is returned immediately.
func (c *Caller) Complete(ctx context.Context, stage, prompt string, timeout time.Duration) (string, error) {
	if c.Client == nil {
		return "", errors.New("llm: no client configured")
	}
	wait := c.RateLimitWait
	if wait <= 0 {
		wait = DefaultRateLimitWait
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	req := c.request(prompt)

	var out string
	attempt := func() error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := c.Client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices", ErrMalformedResponse)
		}
		content := resp.Choices[0].Message.Content
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("%w: empty content", ErrMalformedResponse)
		}
		out = content
		return nil
	}

	err := attempt()
	if err != nil && IsRateLimit(err) {
		c.audit("rate limit hit during %s; waiting %s before one retry", stage, wait)
		log.Warn().Str("stage", stage).Dur("wait", wait).Msg("llm rate limited; retrying once")
		if serr := sleep(ctx, wait); serr != nil {
			c.Metrics.LLMCall(stage, metrics.OutcomeError)
			return "", serr
		}
		err = attempt()
		if err != nil && IsRateLimit(err) {
			err = fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	if err != nil {
		c.Metrics.LLMCall(stage, metrics.OutcomeError)
		c.audit("llm call failed during %s: %v", stage, err)
		return "", fmt.Errorf("llm %s: %w", stage, err)
	}
	c.Metrics.LLMCall(stage, metrics.OutcomeOK)
	return out, nil
}

func (c *Caller) audit(format string, args ...any) {
	if c.Audit != nil {
		c.Audit(format, args...)
	}
}

// IsRateLimit reports whether err carries an HTTP 429 from the backend.
func IsRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return true
	}
	return false
}
