// Package httputil builds the HTTP clients used for model API calls.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultProviderTimeout bounds a single generateContent or Imagen request.
// Image generation regularly takes tens of seconds.
const DefaultProviderTimeout = 60 * time.Second

// NewHTTPClient returns a traced client with the given timeout, or
// DefaultProviderTimeout when timeout is not positive.
func NewHTTPClient(component string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return Instrument(component, &http.Client{Timeout: timeout})
}

// Instrument returns a copy of client whose transport opens a client span
// per request, named "<component> <path>". The original is not modified.
func Instrument(component string, client *http.Client) *http.Client {
	c := *client
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return component + " " + r.URL.Path
		}),
	)
	return &c
}
