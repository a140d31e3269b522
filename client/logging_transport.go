package client

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

const defaultMaxLoggedBody = 1024

// LoggingTransportOption configures the logging HTTP transport.
type LoggingTransportOption func(*loggingTransport)

type loggingTransport struct {
	transport   http.RoundTripper
	logHeaders  bool
	logBody     bool
	maxBodySize int64
}

// NewLoggingTransport wraps transport so each round trip is logged through the
// request context's logger. Headers and bodies are off unless enabled.
func NewLoggingTransport(transport http.RoundTripper, opts ...LoggingTransportOption) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}

	t := &loggingTransport{
		transport:   transport,
		maxBodySize: defaultMaxLoggedBody,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func WithTransportLogHeaders(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logHeaders = enabled
	}
}

func WithTransportLogBody(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logBody = enabled
	}
}

func WithTransportMaxBodySize(size int64) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.maxBodySize = size
	}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	logger := util.Log(ctx).WithFields(map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	})
	if t.logHeaders {
		logger = logger.WithField("headers", flattenHeaders(req.Header))
	}
	logger.Debug("HTTP request sent")

	resp, err := t.transport.RoundTrip(req)

	logger = logger.WithField("duration", time.Since(start).String())
	if err != nil {
		logger.WithError(err).Warn("HTTP request failed")
		return resp, err
	}

	logger = logger.WithField("status", resp.StatusCode)
	if t.logHeaders {
		logger = logger.WithField("response_headers", flattenHeaders(resp.Header))
	}
	if t.logBody && resp.Body != nil {
		logger = logger.WithField("body", t.peekBody(resp))
	}
	logger.Debug("HTTP response received")

	return resp, nil
}

// peekBody reads up to maxBodySize bytes and puts them back in front of the
// unread remainder.
func (t *loggingTransport) peekBody(resp *http.Response) string {
	head, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize))
	if err != nil {
		return ""
	}
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), resp.Body), resp.Body}
	return string(head)
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = strings.Join(values, " , ")
		}
	}
	return out
}
