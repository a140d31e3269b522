package client

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultHTTPTimeoutSeconds     = 30
	defaultHTTPIdleTimeoutSeconds = 90
)

// HTTPOption configures HTTP client behavior.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout     time.Duration
	transport   http.RoundTripper
	idleTimeout time.Duration
	maxBodyLen  int64

	traceRequests       bool
	traceRequestHeaders bool
}

func (c *httpConfig) process(opts ...HTTPOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithHTTPTimeout sets the overall client timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = timeout
	}
}

// WithHTTPTransport sets the HTTP transport.
func WithHTTPTransport(transport http.RoundTripper) HTTPOption {
	return func(c *httpConfig) {
		c.transport = transport
	}
}

// WithHTTPIdleTimeout sets the idle timeout.
func WithHTTPIdleTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.idleTimeout = timeout
	}
}

// WithMaxBodyLen caps how much of a response body ToContent reads.
func WithMaxBodyLen(n int64) HTTPOption {
	return func(c *httpConfig) {
		c.maxBodyLen = n
	}
}

// WithHTTPTraceRequests logs every request and response.
func WithHTTPTraceRequests() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequests = true
	}
}

// WithHTTPTraceRequestHeaders also logs headers when tracing requests.
func WithHTTPTraceRequestHeaders() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequestHeaders = true
	}
}

// NewHTTPClient creates an HTTP client. Without a transport option it uses
// otelhttp.NewTransport(http.DefaultTransport).
func NewHTTPClient(opts ...HTTPOption) *http.Client {
	cfg := &httpConfig{
		timeout:     time.Duration(defaultHTTPTimeoutSeconds) * time.Second,
		idleTimeout: time.Duration(defaultHTTPIdleTimeoutSeconds) * time.Second,
	}
	cfg.process(opts...)

	if cfg.transport == nil {
		cfg.transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	if cfg.traceRequests {
		cfg.transport = NewLoggingTransport(cfg.transport,
			WithTransportLogHeaders(cfg.traceRequestHeaders))
	}

	httpClient := &http.Client{
		Transport: cfg.transport,
		Timeout:   cfg.timeout,
	}

	if cfg.idleTimeout > 0 {
		if t, ok := httpClient.Transport.(*http.Transport); ok {
			t.IdleConnTimeout = cfg.idleTimeout
		}
	}

	return httpClient
}
