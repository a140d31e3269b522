package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CLITestSuite struct {
	suite.Suite

	server      *httptest.Server
	metaVersion atomic.Value
	entryStatus atomic.Int32
	metaCalls   atomic.Int32
	bump        atomic.Bool
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (s *CLITestSuite) SetupTest() {
	s.metaVersion.Store("3")
	s.entryStatus.Store(http.StatusOK)
	s.metaCalls.Store(0)
	s.bump.Store(false)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/assets/locales/"):
			_, _ = w.Write([]byte(`{}`))
		case r.URL.Path == "/assets/app.js":
			w.WriteHeader(int(s.entryStatus.Load()))
		case r.URL.Path == "/api/meta":
			calls := s.metaCalls.Add(1)
			version := s.metaVersion.Load()
			if s.bump.Load() {
				version = strconv.Itoa(3 + int(calls))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"version": version})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	s.T().Cleanup(s.server.Close)

	s.T().Setenv("SERVER_URL", s.server.URL)
	s.T().Setenv("COMPILED_VERSION", "3")
	s.T().Setenv("STORAGE_URI", "sqlite://"+filepath.Join(s.T().TempDir(), "boot.db"))
	s.T().Setenv("LOG_COLORED", "false")
	s.T().Setenv("OPENTELEMETRY_DISABLE", "true")
	s.T().Setenv("MAX_RELOADS", "1")
}

func (s *CLITestSuite) TestSuccessfulBootPrintsDocument() {
	seed := filepath.Join(s.T().TempDir(), "seed.yaml")
	s.Require().NoError(os.WriteFile(seed, []byte(`
theme:
  accent: "#86b300"
  radius: 6
fontSize: 2
customCss: "body { margin: 0 }"
`), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--seed", seed, "--accept-language", "ja"}, &stdout, &stderr)

	s.Equal(exitOK, code, stderr.String())
	s.Contains(stdout.String(), "--accent: #86b300")
	s.Contains(stdout.String(), "f-2")
	s.Contains(stdout.String(), "body { margin: 0 }")
}

func (s *CLITestSuite) TestFailedBootExitsNonZero() {
	s.entryStatus.Store(http.StatusNotFound)

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)

	s.Equal(exitFailure, code)
	s.Contains(stdout.String(), "APP_FETCH_FAILED")
}

func (s *CLITestSuite) TestReloadSettlesOnNewVersion() {
	s.entryStatus.Store(http.StatusNotFound)
	s.metaVersion.Store("4")

	out := filepath.Join(s.T().TempDir(), "page.html")
	var stdout, stderr bytes.Buffer
	code := run([]string{"--out", out}, &stdout, &stderr)

	s.Equal(exitFailure, code)
	s.Equal(int32(2), s.metaCalls.Load())
	s.Empty(stdout.String())

	page, err := os.ReadFile(out)
	s.Require().NoError(err)
	s.Contains(string(page), "APP_FETCH_FAILED")
}

func (s *CLITestSuite) TestReloadIsBounded() {
	s.entryStatus.Store(http.StatusNotFound)
	s.bump.Store(true)

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)

	s.Equal(exitFailure, code)
	s.Equal(int32(2), s.metaCalls.Load())
}

func (s *CLITestSuite) TestBadFlags() {
	var stdout, stderr bytes.Buffer
	s.Equal(exitSetup, run([]string{"--nope"}, &stdout, &stderr))
}
