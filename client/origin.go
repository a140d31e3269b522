package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pitabwire/util"
)

const defaultMaxResponseBodyLen = 32 << 20

var ErrResponseTooLarge = errors.New("response body truncated, it exceeds configured limit")

// Manager issues requests against the origin the page was served from.
type Manager interface {
	Client(ctx context.Context) *http.Client
	// Resolve turns an origin relative path into an absolute URL.
	Resolve(path string) string
	Invoke(ctx context.Context, method string, path string, headers http.Header) (*InvokeResponse, error)
}

type InvokeResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser

	maxBodyLen int64
}

func (s *InvokeResponse) Close() error {
	if s.Body != nil {
		return s.Body.Close()
	}
	return nil
}

// ToContent reads and closes the body.
func (s *InvokeResponse) ToContent(ctx context.Context) ([]byte, error) {
	defer util.CloseAndLogOnError(ctx, s)

	reader := io.Reader(s.Body)
	if s.maxBodyLen > 0 {
		reader = io.LimitReader(s.Body, s.maxBodyLen+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if s.maxBodyLen > 0 && int64(len(data)) > s.maxBodyLen {
		return data[:s.maxBodyLen], ErrResponseTooLarge
	}

	return data, nil
}

// Decode streams a JSON body into v and closes it.
func (s *InvokeResponse) Decode(ctx context.Context, v any) error {
	defer util.CloseAndLogOnError(ctx, s)
	return json.NewDecoder(s.Body).Decode(v)
}

type origin struct {
	base       *url.URL
	client     *http.Client
	maxBodyLen int64
}

// NewManager creates a Manager rooted at baseURL.
func NewManager(baseURL string, opts ...HTTPOption) (Manager, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &url.Error{Op: "parse", URL: baseURL, Err: errors.New("origin must be absolute")}
	}

	cfg := &httpConfig{maxBodyLen: defaultMaxResponseBodyLen}
	cfg.process(opts...)

	return &origin{
		base:       base,
		client:     NewHTTPClient(opts...),
		maxBodyLen: cfg.maxBodyLen,
	}, nil
}

func (o *origin) Client(_ context.Context) *http.Client {
	return o.client
}

func (o *origin) Resolve(path string) string {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return o.base.String() + strings.TrimLeft(path, "/")
	}
	return o.base.ResolveReference(ref).String()
}

// Invoke sends a body-less request. The caller owns the response body.
func (o *origin) Invoke(ctx context.Context, method string, path string, headers http.Header) (*InvokeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, o.Resolve(path), nil)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		req.Header = headers.Clone()
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}

	return &InvokeResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
		maxBodyLen: o.maxBodyLen,
	}, nil
}
