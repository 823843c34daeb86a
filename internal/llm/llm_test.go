package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type scriptedClient struct {
	replies []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	calls   int
	last    openai.ChatCompletionRequest
}

func (s *scriptedClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i](req)
}

func reply(content string) func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}}}, nil
	}
}

func fail(status int) func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: status, Message: "boom"}
	}
}

func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestCaller_SendsConfiguredParameters(t *testing.T) {
	temp := float32(0.3)
	maxTok := 512
	topP := float32(0.9)
	topK := 40
	c := &scriptedClient{replies: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){reply("hi")}}
	caller := &Caller{Client: c, Model: ModelConfig{Model: "m1", Temperature: &temp, MaxTokens: &maxTok, TopP: &topP, TopK: &topK}}
	got, err := caller.Complete(context.Background(), "test", "prompt", time.Second)
	if err != nil || got != "hi" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if c.last.Model != "m1" || c.last.Temperature != temp || c.last.MaxTokens != maxTok || c.last.TopP != topP {
		t.Fatalf("unexpected request: %+v", c.last)
	}
	if len(c.last.Messages) != 1 || c.last.Messages[0].Role != openai.ChatMessageRoleUser || c.last.Messages[0].Content != "prompt" {
		t.Fatalf("unexpected messages: %+v", c.last.Messages)
	}
}

func TestCaller_RateLimitRetriesOnce(t *testing.T) {
	var waits []time.Duration
	c := &scriptedClient{replies: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){fail(429), reply("ok")}}
	caller := &Caller{Client: c, Model: ModelConfig{Model: "m"}, Sleep: noSleep(&waits)}
	got, err := caller.Complete(context.Background(), "s", "p", 0)
	if err != nil || got != "ok" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if c.calls != 2 || len(waits) != 1 || waits[0] != DefaultRateLimitWait {
		t.Fatalf("calls=%d waits=%v", c.calls, waits)
	}
}

func TestCaller_RateLimitTwiceFails(t *testing.T) {
	var waits []time.Duration
	c := &scriptedClient{replies: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){fail(429)}}
	caller := &Caller{Client: c, Model: ModelConfig{Model: "m"}, Sleep: noSleep(&waits)}
	_, err := caller.Complete(context.Background(), "s", "p", 0)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if c.calls != 2 {
		t.Fatalf("calls=%d, want 2", c.calls)
	}
}

func TestCaller_OtherErrorsAreNotRetried(t *testing.T) {
	var waits []time.Duration
	c := &scriptedClient{replies: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){fail(500)}}
	var audited int
	caller := &Caller{Client: c, Model: ModelConfig{Model: "m"}, Sleep: noSleep(&waits), Audit: func(string, ...any) { audited++ }}
	if _, err := caller.Complete(context.Background(), "s", "p", 0); err == nil {
		t.Fatal("expected error")
	}
	if c.calls != 1 || len(waits) != 0 || audited != 1 {
		t.Fatalf("calls=%d waits=%v audited=%d", c.calls, waits, audited)
	}
}

func TestCaller_MalformedResponses(t *testing.T) {
	empty := func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, nil
	}
	for name, r := range map[string]func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){
		"no choices":    empty,
		"blank content": reply("   "),
	} {
		c := &scriptedClient{replies: []func(openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error){r}}
		caller := &Caller{Client: c, Model: ModelConfig{Model: "m"}}
		if _, err := caller.Complete(context.Background(), "s", "p", 0); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: want ErrMalformedResponse, got %v", name, err)
		}
	}
}

func TestSelect_Precedence(t *testing.T) {
	models, err := ParseModels([]byte(`
default_model:
  model: base
  api_endpoint: http://localhost:1234/v1/chat/completions
  max_tokens: 2048
fast:
  model: small
  temperature: 0.2
  top_k: 20
broken:
  api_key: x
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		override, env, want string
	}{
		{"", "", "base"},
		{"", "fast", "small"},
		{"default_model", "fast", "base"},
	}
	for _, tc := range cases {
		mc, err := Select(models, tc.override, tc.env)
		if err != nil {
			t.Fatalf("select(%q,%q): %v", tc.override, tc.env, err)
		}
		if mc.Model != tc.want {
			t.Fatalf("select(%q,%q)=%q, want %q", tc.override, tc.env, mc.Model, tc.want)
		}
	}
	if _, err := Select(models, "missing", ""); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if _, err := Select(models, "broken", ""); err == nil {
		t.Fatal("expected error for config without model")
	}
	fast := models["fast"]
	if fast.TopK == nil || *fast.TopK != 20 || fast.Key != "fast" {
		t.Fatalf("fast config decoded wrong: %+v", fast)
	}
	if got := models["default_model"].MaxTokensOr(4096); got != 2048 {
		t.Fatalf("MaxTokensOr=%d", got)
	}
	if got := fast.MaxTokensOr(4096); got != 4096 {
		t.Fatalf("MaxTokensOr default=%d", got)
	}
}

func TestLoadModels_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_models.yml")
	if err := os.WriteFile(path, []byte("default_model:\n  model: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	models, err := LoadModels(path)
	if err != nil || models["default_model"].Model != "x" {
		t.Fatalf("models=%v err=%v", models, err)
	}
	if _, err := LoadModels(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"http://h:1/v1/chat/completions":  "http://h:1/v1",
		"http://h:1/v1/chat/completions/": "http://h:1/v1",
		"http://h:1/v1/":                  "http://h:1/v1",
		"":                                "",
	}
	for in, want := range cases {
		if got := NormalizeBaseURL(in); got != want {
			t.Fatalf("NormalizeBaseURL(%q)=%q, want %q", in, got, want)
		}
	}
}
