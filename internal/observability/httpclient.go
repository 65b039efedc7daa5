package observability

import (
	"net/http"
	"time"
)

// NewHTTPClient returns an http.Client for provider adapter traffic with a
// 120s default timeout when the caller hasn't set one; the transport is
// left untouched. Passing a pre-configured client (e.g. with a custom
// transport) is preserved as-is aside from the timeout default.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	if base.Timeout == 0 {
		base.Timeout = 120 * time.Second
	}
	return base
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range h.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return h.next.RoundTrip(req)
}

// WithHeaders wraps the client's transport so every outgoing request carries
// the given headers unless the caller already set them explicitly.
func WithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	base.Transport = &headerRoundTripper{headers: headers, next: next}
	return base
}
