package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader/client"
)

type OriginTestSuite struct {
	suite.Suite
}

func TestOriginTestSuite(t *testing.T) {
	suite.Run(t, new(OriginTestSuite))
}

func (s *OriginTestSuite) TestResolve() {
	m, err := client.NewManager("http://example.test/app/")
	s.Require().NoError(err)

	s.Equal("http://example.test/app/assets/locales/en-US.3.json", m.Resolve("/assets/locales/en-US.3.json"))
	s.Equal("http://example.test/app/api/meta", m.Resolve("api/meta"))
}

func (s *OriginTestSuite) TestRejectsRelativeOrigin() {
	_, err := client.NewManager("/relative")
	s.Error(err)
}

func (s *OriginTestSuite) TestInvoke() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Cache", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte(`{"version":"4"}`))
	}))
	defer server.Close()

	m, err := client.NewManager(server.URL, client.WithHTTPTraceRequests(), client.WithHTTPTraceRequestHeaders())
	s.Require().NoError(err)

	ctx := context.Background()
	resp, err := m.Invoke(ctx, http.MethodPost, "/api/meta", http.Header{"Cache-Control": {"no-cache"}})
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(http.MethodPost, resp.Headers.Get("X-Method"))
	s.Equal("no-cache", resp.Headers.Get("X-Cache"))

	var meta struct {
		Version string `json:"version"`
	}
	s.Require().NoError(resp.Decode(ctx, &meta))
	s.Equal("4", meta.Version)
}

func (s *OriginTestSuite) TestToContentLimit() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	m, err := client.NewManager(server.URL, client.WithMaxBodyLen(4))
	s.Require().NoError(err)

	ctx := context.Background()
	resp, err := m.Invoke(ctx, http.MethodGet, "/", nil)
	s.Require().NoError(err)

	data, err := resp.ToContent(ctx)
	s.ErrorIs(err, client.ErrResponseTooLarge)
	s.Equal("0123", string(data))
}

func (s *OriginTestSuite) TestLoggingTransportKeepsBody() {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	httpClient := &http.Client{Transport: client.NewLoggingTransport(nil,
		client.WithTransportLogBody(true), client.WithTransportMaxBodySize(16))}

	m, err := client.NewManager(server.URL, client.WithHTTPTransport(httpClient.Transport))
	s.Require().NoError(err)

	ctx := context.Background()
	resp, err := m.Invoke(ctx, http.MethodGet, "/", nil)
	s.Require().NoError(err)

	data, err := resp.ToContent(ctx)
	s.Require().NoError(err)
	s.Len(data, len(body))
}
