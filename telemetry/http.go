package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTracedHTTPClient wraps baseTransport (http.DefaultTransport when nil)
// with otelhttp so outbound provider calls produce spans under the caller's
// tracer, grounded on itsneelabh-gomind/telemetry/http.go's
// NewTracedHTTPClient.
func NewTracedHTTPClient(baseTransport http.RoundTripper) *http.Client {
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	return &http.Client{Transport: otelhttp.NewTransport(baseTransport)}
}

// NewTracedHTTPClientWithTransport is NewTracedHTTPClient with a pooled
// default *http.Transport (MaxIdleConns 100, MaxIdleConnsPerHost 10,
// IdleConnTimeout 90s, HTTP/2) when transport is nil, matching the teacher's
// NewTracedHTTPClientWithTransport defaults.
func NewTracedHTTPClientWithTransport(transport *http.Transport) *http.Client {
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
	return &http.Client{Transport: otelhttp.NewTransport(transport)}
}
