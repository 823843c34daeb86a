package app

import (
	"net/http"
	"reflect"
	"testing"
)

func TestNewHTTPClient_Config(t *testing.T) {
	c := newHTTPClient()
	if c.Timeout != 0 {
		t.Fatalf("client timeout must be zero so long LLM calls are bounded by context only, got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.Proxy == nil || tr.TLSHandshakeTimeout == 0 {
		t.Fatalf("transport missing proxy or handshake timeout")
	}
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}
