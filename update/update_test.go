package update_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader/client"
	"github.com/pitabwire/bootloader/storage"
	"github.com/pitabwire/bootloader/update"
)

type fakeRegistration struct {
	err        error
	unregister *atomic.Int32
}

func (f fakeRegistration) Unregister(context.Context) error {
	f.unregister.Add(1)
	return f.err
}

type fakeWorker struct {
	postErr  error
	listErr  error
	panicky  bool
	messages []string
	regs     []update.Registration
}

func (f *fakeWorker) PostMessage(_ context.Context, msg string) error {
	if f.panicky {
		panic("worker gone")
	}
	f.messages = append(f.messages, msg)
	return f.postErr
}

func (f *fakeWorker) Registrations(context.Context) ([]update.Registration, error) {
	return f.regs, f.listErr
}

type UpdateTestSuite struct {
	suite.Suite

	server  *httptest.Server
	origin  client.Manager
	handler atomic.Value
}

func TestUpdateTestSuite(t *testing.T) {
	suite.Run(t, new(UpdateTestSuite))
}

func (s *UpdateTestSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler.Load().(http.HandlerFunc)(w, r)
	}))

	var err error
	s.origin, err = client.NewManager(s.server.URL)
	s.Require().NoError(err)
}

func (s *UpdateTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *UpdateTestSuite) serveMeta(status int, body string) *atomic.Int32 {
	calls := &atomic.Int32{}
	s.handler.Store(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/api/meta", r.URL.Path)
		s.Equal("no-cache", r.Header.Get("Cache-Control"))
		s.Equal("no-cache", r.Header.Get("Pragma"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return calls
}

func (s *UpdateTestSuite) TestNewVersionPersistsThenReloads() {
	s.serveMeta(http.StatusOK, `{"version":"4","name":"instance"}`)

	backend := storage.NewInMemoryBackend()
	st := storage.New(backend)
	s.Require().NoError(st.Set(context.Background(), storage.KeyVersion, "3"))

	var reloads atomic.Int32
	var versionAtReload string
	reloader := update.ReloaderFunc(func(ctx context.Context) {
		reloads.Add(1)
		versionAtReload = storage.Lookup(ctx, st, storage.KeyVersion)
	})

	worker := &fakeWorker{}
	checker := update.NewChecker(st, s.origin, update.NewRefresher(worker, reloader))

	changed, err := checker.Check(context.Background(), "3")
	s.Require().NoError(err)
	s.True(changed)
	s.Equal("4", backend.Snapshot()[storage.KeyVersion])
	s.Equal(int32(1), reloads.Load())
	s.Equal("4", versionAtReload)
	s.Equal([]string{update.ClearMessage}, worker.messages)
}

func (s *UpdateTestSuite) TestSameVersionDoesNothing() {
	s.serveMeta(http.StatusOK, `{"version":"3"}`)

	backend := storage.NewInMemoryBackend()
	var reloads atomic.Int32
	checker := update.NewChecker(storage.New(backend), s.origin,
		update.NewRefresher(nil, update.ReloaderFunc(func(context.Context) { reloads.Add(1) })))

	changed, err := checker.Check(context.Background(), "3")
	s.Require().NoError(err)
	s.False(changed)
	s.Empty(backend.Snapshot())
	s.Zero(reloads.Load())
}

func (s *UpdateTestSuite) TestFailuresAreReported() {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"version":"9"}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "no version", status: http.StatusOK, body: `{}`},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.serveMeta(tc.status, tc.body)
			backend := storage.NewInMemoryBackend()

			checker := update.NewChecker(storage.New(backend), s.origin, nil)
			_, err := checker.Check(context.Background(), "3")
			s.Require().ErrorIs(err, update.ErrUpdateCheckFailed)
			s.Empty(backend.Snapshot())
		})
	}
}

func (s *UpdateTestSuite) TestTimeoutFails() {
	s.handler.Store(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	checker := update.NewChecker(storage.NewMemory(), s.origin, nil, update.WithTimeout(50*time.Millisecond))
	_, err := checker.Check(context.Background(), "3")
	s.Require().ErrorIs(err, update.ErrUpdateCheckFailed)
}

func (s *UpdateTestSuite) TestRefreshAlwaysReloads() {
	unregistered := &atomic.Int32{}

	testCases := []struct {
		name         string
		worker       update.CacheWorker
		unregistered int32
	}{
		{name: "no worker", worker: nil},
		{
			name: "clears and unregisters",
			worker: &fakeWorker{regs: []update.Registration{
				fakeRegistration{unregister: unregistered},
				fakeRegistration{unregister: unregistered},
			}},
			unregistered: 2,
		},
		{
			name: "errors are swallowed",
			worker: &fakeWorker{
				postErr: errors.New("post failed"),
				regs: []update.Registration{
					fakeRegistration{unregister: unregistered, err: errors.New("nope")},
					fakeRegistration{unregister: unregistered},
				},
			},
			unregistered: 2,
		},
		{
			name:   "listing fails",
			worker: &fakeWorker{listErr: errors.New("no access")},
		},
		{
			name:   "panic is contained",
			worker: &fakeWorker{panicky: true},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			unregistered.Store(0)
			var reloads atomic.Int32
			refresher := update.NewRefresher(tc.worker, update.ReloaderFunc(func(context.Context) { reloads.Add(1) }))

			s.NotPanics(func() { refresher.Refresh(context.Background()) })
			s.Equal(int32(1), reloads.Load())
			s.Equal(tc.unregistered, unregistered.Load())
		})
	}
}

func (s *UpdateTestSuite) TestHTTPCacheWorkerFlushes() {
	var flushed atomic.Int32
	s.handler.Store(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/flush" {
			flushed.Add(1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	worker := update.NewHTTPCacheWorker(s.origin)
	s.Require().NoError(worker.PostMessage(context.Background(), update.ClearMessage))
	s.Equal(int32(1), flushed.Load())

	s.Require().Error(worker.PostMessage(context.Background(), "skipWaiting"))

	regs, err := worker.Registrations(context.Background())
	s.Require().NoError(err)
	s.Empty(regs)
}
