package discover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperifyio/reportbuilder/internal/fetch"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/retry"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (f *fakeLLM) Complete(_ context.Context, _, prompt string, _ time.Duration) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

type fakeChecker struct {
	codes   map[string]int
	checked []string
}

func (f *fakeChecker) Head(_ context.Context, u string) (int, error) {
	f.checked = append(f.checked, u)
	code, ok := f.codes[u]
	if !ok {
		return 0, errors.New("dial failed")
	}
	return code, nil
}

func newRun(t *testing.T) *runctx.Run {
	t.Helper()
	r, err := runctx.New(t.TempDir(), "topic", time.Now(), llm.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNormalizeCandidates(t *testing.T) {
	block := "techcrunch.com (tech news)\n  r/energy \nhttp://plain.example/path\nnot a source\n\nexampleblog.net/section\n"
	want := []string{"https://techcrunch.com", "r/energy", "http://plain.example/path", "https://exampleblog.net/section"}
	if diff := cmp.Diff(want, NormalizeCandidates(block)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDiscover_ValidatesAgainstBaseURL(t *testing.T) {
	f := &fakeLLM{reply: "<think>hmm</think><toolWebsites>\nexamplenews.com/energy\nr/batteries\ndown.example\nforbidden.example\n</toolWebsites>"}
	ch := &fakeChecker{codes: map[string]int{
		"https://examplenews.com/": 200,
		"https://forbidden.example/": 403,
	}}
	r := New(f, ch)
	r.Sleep = retry.NoSleep
	got := r.Discover(context.Background(), newRun(t), []string{"solid-state battery", "storage"}, Options{})
	want := []string{"https://examplenews.com/energy", "r/batteries"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if !strings.Contains(f.prompt, "'solid-state battery | storage'") {
		t.Fatalf("keywords not joined in prompt: %q", f.prompt)
	}
	if diff := cmp.Diff([]string{"https://examplenews.com/", "https://down.example/", "https://forbidden.example/"}, ch.checked); diff != "" {
		t.Fatalf("checked (-want +got):\n%s", diff)
	}
}

func TestDiscover_NoReddit(t *testing.T) {
	f := &fakeLLM{reply: "<toolWebsites>r/solar\nhttps://www.reddit.com/r/energy\nsite.example</toolWebsites>"}
	ch := &fakeChecker{codes: map[string]int{"https://site.example/": 200}}
	r := New(f, ch)
	r.Sleep = retry.NoSleep
	got := r.Discover(context.Background(), newRun(t), []string{"k"}, Options{NoReddit: true})
	if diff := cmp.Diff([]string{"https://site.example"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDiscover_FailuresYieldEmpty(t *testing.T) {
	cases := map[string]*fakeLLM{
		"llm error":   {err: errors.New("boom")},
		"missing tag": {reply: "techcrunch.com"},
		"empty tag":   {reply: "<toolWebsites>  </toolWebsites>"},
		"unclosed":    {reply: "<toolWebsites>techcrunch.com"},
	}
	for name, f := range cases {
		r := New(f, &fakeChecker{})
		r.Sleep = retry.NoSleep
		if got := r.Discover(context.Background(), newRun(t), []string{"k"}, Options{}); len(got) != 0 {
			t.Fatalf("%s: expected empty, got %v", name, got)
		}
		if f.calls != 1 {
			t.Fatalf("%s: expected single call, got %d", name, f.calls)
		}
	}
}

func TestDiscover_WithFetchClientHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f := &fakeLLM{reply: "<toolWebsites>" + srv.URL + "/deep/page</toolWebsites>"}
	r := New(f, &fetch.Client{})
	r.Sleep = retry.NoSleep
	got := r.Discover(context.Background(), newRun(t), []string{"k"}, Options{})
	if len(got) != 1 || got[0] != srv.URL+"/deep/page" {
		t.Fatalf("got %v", got)
	}
}
