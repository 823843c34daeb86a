package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns the client shared by page fetches, HEAD probes,
// search providers and the LLM. Calls are sequential, so the pool stays
// small. There is no overall client timeout: every call carries its own
// deadline through its context, and LLM generation may legitimately run for
// tens of minutes.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
