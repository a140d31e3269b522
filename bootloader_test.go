package bootloader_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader"
	"github.com/pitabwire/bootloader/config"
	"github.com/pitabwire/bootloader/document"
	"github.com/pitabwire/bootloader/entry"
	"github.com/pitabwire/bootloader/storage"
	"github.com/pitabwire/bootloader/update"
)

// fakeOrigin serves the endpoints the boot sequence talks to.
type fakeOrigin struct {
	mu           sync.Mutex
	metaVersion  string
	metaStatus   int
	localeStatus int
	entryStatus  int
	localeDelay  time.Duration
	paths        []string
	flushes      atomic.Int32
}

func (f *fakeOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	metaVersion, metaStatus := f.metaVersion, f.metaStatus
	localeStatus, entryStatus := f.localeStatus, f.entryStatus
	localeDelay := f.localeDelay
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/assets/locales/"):
		time.Sleep(localeDelay)
		w.WriteHeader(localeStatus)
		_, _ = w.Write([]byte(`{"greeting":"hi"}`))
	case r.URL.Path == "/assets/app.js":
		w.WriteHeader(entryStatus)
		_, _ = w.Write([]byte("start()"))
	case r.URL.Path == "/api/meta":
		w.WriteHeader(metaStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{"version": metaVersion})
	case r.URL.Path == "/flush":
		f.flushes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeOrigin) requested(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

type BootTestSuite struct {
	suite.Suite

	origin  *fakeOrigin
	server  *httptest.Server
	backend *storage.InMemoryBackend
	store   storage.Store
}

func TestBootTestSuite(t *testing.T) {
	suite.Run(t, new(BootTestSuite))
}

func (s *BootTestSuite) SetupTest() {
	s.origin = &fakeOrigin{
		metaVersion:  "3",
		metaStatus:   http.StatusOK,
		localeStatus: http.StatusOK,
		entryStatus:  http.StatusOK,
	}
	s.server = httptest.NewServer(s.origin)
	s.backend = storage.NewInMemoryBackend()
	s.store = storage.New(s.backend)
}

func (s *BootTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *BootTestSuite) seed(entries map[string]string) {
	for k, v := range entries {
		s.Require().NoError(s.store.Set(context.Background(), k, v))
	}
}

func (s *BootTestSuite) newLoader(opts ...bootloader.Option) *bootloader.Loader {
	cfg := &config.ConfigurationDefault{
		ServerURLValue:          s.server.URL,
		CompiledVersionValue:    "3",
		SupportedLanguagesValue: "en-US,ja-JP",
		EntryFileValue:          "app.js",
		FetchTimeoutValue:       "5s",
		EntryTimeoutValue:       "5s",
		WorkerPoolCapacity:      4,
		WorkerPoolCount:         1,
		LogLevel:                "debug",
	}

	opts = append([]bootloader.Option{
		bootloader.WithConfig(cfg),
		bootloader.WithStore(s.store),
		bootloader.WithBrowserLanguage("ja-JP,en;q=0.5"),
	}, opts...)

	_, loader, err := bootloader.NewLoader(context.Background(), opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { loader.Close(context.Background()) })
	return loader
}

func (s *BootTestSuite) TestFreshLocaleSkipsFetch() {
	s.seed(map[string]string{
		storage.KeyVersion:       "3",
		storage.KeyLang:          "ja-JP",
		storage.KeyLocale:        "{}",
		storage.KeyLocaleVersion: "3",
	})
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Nil(res.Failure)
	s.False(res.Reloaded)
	s.Equal("3", res.Version)
	s.Equal("ja-JP", res.Lang)
	s.Empty(s.origin.requested("GET /assets/locales/"))
	s.Len(s.origin.requested("GET /assets/app.js"), 1)
	s.Empty(s.origin.requested("POST /api/meta"))
	s.False(doc.Failed())
}

func (s *BootTestSuite) TestOutdatedLocaleIsRefetched() {
	s.seed(map[string]string{
		storage.KeyVersion:       "3",
		storage.KeyLang:          "ja-JP",
		storage.KeyLocale:        "{}",
		storage.KeyLocaleVersion: "2",
	})

	res := s.newLoader().Run(context.Background(), document.New())

	s.Nil(res.Failure)
	s.Equal([]string{"GET /assets/locales/ja-JP.3.json"}, s.origin.requested("GET /assets/locales/"))
	snap := s.backend.Snapshot()
	s.Equal("3", snap[storage.KeyLocaleVersion])
	s.JSONEq(`{"greeting":"hi"}`, snap[storage.KeyLocale])
}

func (s *BootTestSuite) TestCompiledVersionUsedWhenNothingStored() {
	res := s.newLoader().Run(context.Background(), document.New())

	s.Nil(res.Failure)
	s.Equal("3", res.Version)
	s.Equal("ja-JP", res.Lang)
	s.Equal([]string{"GET /assets/locales/ja-JP.3.json"}, s.origin.requested("GET /assets/locales/"))
}

func (s *BootTestSuite) TestStyleIsAppliedBeforeTasks() {
	s.seed(map[string]string{
		storage.KeyTheme:     `{"accent":"#86b300"}`,
		storage.KeyFontSize:  "2",
		storage.KeyCustomCSS: "body{}",
	})
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Nil(res.Failure)
	accent, _ := doc.RootStyleProperty("--accent")
	s.Equal("#86b300", accent)
	s.Contains(doc.RootClasses(), "f-2")
}

func (s *BootTestSuite) TestLocaleFailureChecksUpdateThenRenders() {
	s.origin.localeStatus = http.StatusNotFound
	entries := map[string]string{
		storage.KeyVersion:       "3",
		storage.KeyLang:          "en-US",
		storage.KeyLocale:        `{"old":"1"}`,
		storage.KeyLocaleVersion: "2",
	}
	s.seed(entries)
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeLocaleFetchFailed, res.Failure.Code)
	s.Len(s.origin.requested("POST /api/meta"), 1)
	s.Equal(entries, s.backend.Snapshot())
	s.True(doc.Failed())
	s.Contains(doc.Text(), bootloader.CodeLocaleFetchFailed)
	s.False(res.Reloaded)
}

func (s *BootTestSuite) TestEntryFailureRendersAppFetchFailed() {
	s.origin.entryStatus = http.StatusNotFound
	s.seed(map[string]string{
		storage.KeyVersion:       "3",
		storage.KeyLocale:        "{}",
		storage.KeyLocaleVersion: "3",
	})
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeAppFetchFailed, res.Failure.Code)
	s.Contains(res.Failure.Details, "404")
	s.Len(s.origin.requested("POST /api/meta"), 1)
	s.Contains(doc.Text(), "APP_FETCH_FAILED")
	s.Equal([]string{"/cli", "/bios", "/flush"}, doc.Links())
}

func (s *BootTestSuite) TestNewServerVersionPersistsAndReloads() {
	s.origin.entryStatus = http.StatusInternalServerError
	s.origin.metaVersion = "4"
	s.seed(map[string]string{storage.KeyVersion: "3"})

	var reloads atomic.Int32
	loader := s.newLoader(bootloader.WithReloader(update.ReloaderFunc(func(context.Context) {
		reloads.Add(1)
	})))

	res := loader.Run(context.Background(), document.New())

	s.True(res.Reloaded)
	s.Equal(int32(1), reloads.Load())
	s.Equal("4", s.backend.Snapshot()[storage.KeyVersion])
	s.Equal(int32(1), s.origin.flushes.Load())

	s.origin.mu.Lock()
	s.origin.entryStatus = http.StatusOK
	s.origin.mu.Unlock()

	next := loader.Run(context.Background(), document.New())
	s.Nil(next.Failure)
	s.Equal("4", next.Version)
}

func (s *BootTestSuite) TestUpdateCheckFailureHasItsOwnCode() {
	s.origin.entryStatus = http.StatusNotFound
	s.origin.metaStatus = http.StatusBadGateway
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeUpdateCheckFailed, res.Failure.Code)
	s.Contains(res.Failure.Details, bootloader.CodeAppFetchFailed)
	s.Contains(doc.Text(), bootloader.CodeUpdateCheckFailed)
}

func (s *BootTestSuite) TestBothTasksFailingChecksOnce() {
	s.origin.entryStatus = http.StatusNotFound
	s.origin.localeStatus = http.StatusNotFound
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Require().NotNil(res.Failure)
	s.Contains([]string{bootloader.CodeAppFetchFailed, bootloader.CodeLocaleFetchFailed}, res.Failure.Code)
	s.Len(s.origin.requested("POST /api/meta"), 1)
	s.Contains(doc.Text(), res.Failure.Code)
}

func (s *BootTestSuite) TestUpdateCheckFailureSurvivesLaterFailures() {
	s.origin.entryStatus = http.StatusNotFound
	s.origin.metaStatus = http.StatusBadGateway
	s.origin.localeStatus = http.StatusNotFound
	s.origin.localeDelay = 300 * time.Millisecond
	doc := document.New()

	res := s.newLoader().Run(context.Background(), doc)

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeUpdateCheckFailed, res.Failure.Code)
	s.Contains(res.Failure.Details, bootloader.CodeLocaleFetchFailed)
	s.Len(s.origin.requested("POST /api/meta"), 1)
	s.Contains(doc.Text(), bootloader.CodeUpdateCheckFailed)
}

func (s *BootTestSuite) TestPanickingRenderIsContained() {
	s.origin.entryStatus = http.StatusNotFound
	doc := explodingDocument{HTMLDocument: document.New()}

	var res bootloader.Result
	s.NotPanics(func() {
		res = s.newLoader().Run(context.Background(), doc)
	})

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeSomethingHappened, res.Failure.Code)
	s.Contains(res.Failure.Details, "replace exploded")
}

func (s *BootTestSuite) TestVersionPanicSkipsUpdateCheck() {
	s.origin.metaVersion = "4"
	st := versionPanicStore{Store: s.store}

	res := s.newLoader(bootloader.WithStore(st)).Run(context.Background(), document.New())

	s.Require().NotNil(res.Failure)
	s.Equal(bootloader.CodeSomethingHappened, res.Failure.Code)
	s.False(res.Reloaded)
	s.Empty(s.origin.requested("POST /api/meta"))
	s.NotContains(s.backend.Snapshot(), storage.KeyVersion)
}

func (s *BootTestSuite) TestPanicsAndUnmappedErrors() {
	testCases := []struct {
		name    string
		scripts entry.ScriptLoaderFunc
		store   storage.Store
		code    string
	}{
		{
			name:    "panicking bundle",
			scripts: func(context.Context, string) error { panic("bundle exploded") },
			code:    bootloader.CodeSomethingHappened,
		},
		{
			name:    "broken store",
			scripts: func(context.Context, string) error { return nil },
			store:   brokenStore{Store: storage.NewMemory()},
			code:    bootloader.CodeSomethingHappenedInAsync,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			opts := []bootloader.Option{bootloader.WithScriptLoader(tc.scripts)}
			if tc.store != nil {
				opts = append(opts, bootloader.WithStore(tc.store))
			}
			doc := document.New()

			res := s.newLoader(opts...).Run(context.Background(), doc)

			s.Require().NotNil(res.Failure)
			s.Equal(tc.code, res.Failure.Code)
			s.True(doc.Failed())
		})
	}
}

func (s *BootTestSuite) TestStorageURIOpensBackend() {
	st, closer, err := bootloader.OpenStore(context.Background(), "mem://", "boot")
	s.Require().NoError(err)
	s.Require().NoError(st.Set(context.Background(), "k", "v"))
	s.Require().NoError(closer())

	_, _, err = bootloader.OpenStore(context.Background(), "ftp://nowhere", "")
	s.Require().ErrorIs(err, storage.ErrUnsupportedDSN)

	loader := s.newLoader(bootloader.WithStorageURI("sqlite://"+s.T().TempDir()+"/boot.db", ""))
	res := loader.Run(context.Background(), document.New())
	s.Nil(res.Failure)

	lang, found, err := loader.Store().Get(context.Background(), storage.KeyLang)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("ja-JP", lang)
}

type brokenStore struct {
	storage.Store
}

func (brokenStore) Has(context.Context, string) (bool, error) {
	return false, errors.New("disk on fire")
}

type explodingDocument struct {
	*document.HTMLDocument
}

func (explodingDocument) Replace(string) error {
	panic("replace exploded")
}

type versionPanicStore struct {
	storage.Store
}

func (v versionPanicStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == storage.KeyVersion {
		panic("version unreadable")
	}
	return v.Store.Get(ctx, key)
}
