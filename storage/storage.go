package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/pitabwire/util"
)

// Keys persisted by the boot sequence. Values are always strings.
const (
	KeyVersion       = "v"
	KeyLang          = "lang"
	KeyLocale        = "locale"
	KeyLocaleVersion = "localeVersion"
	KeyTheme         = "theme"
	KeyFontSize      = "fontSize"
	KeyUseSystemFont = "useSystemFont"
	KeyWallpaper     = "wallpaper"
	KeyCustomCSS     = "customCss"
)

var ErrUnsupportedDSN = errors.New("storage: unsupported data source name")

// Backend is the low-level durable store that works with bytes.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
}

// Store is the string-keyed, string-valued view every boot component is handed.
// A Set has completed, and is visible to subsequent reads, when it returns.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Has(ctx context.Context, key string) (bool, error)
}

type backendStore struct {
	backend   Backend
	namespace string
}

// New wraps a Backend as a Store. WithName namespaces every key.
func New(backend Backend, opts ...Option) Store {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	return &backendStore{
		backend:   backend,
		namespace: strings.TrimSpace(o.Name),
	}
}

// NewMemory returns a Store over a fresh in-memory backend.
func NewMemory() Store {
	return New(NewInMemoryBackend())
}

func (s *backendStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + "." + k
}

func (s *backendStore) Get(ctx context.Context, key string) (string, bool, error) {
	data, found, err := s.backend.Get(ctx, s.key(key))
	if err != nil || !found {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *backendStore) Set(ctx context.Context, key string, value string) error {
	return s.backend.Set(ctx, s.key(key), []byte(value))
}

func (s *backendStore) Has(ctx context.Context, key string) (bool, error) {
	return s.backend.Exists(ctx, s.key(key))
}

// Lookup reads key and reports "" when it is absent or unreadable.
// Read failures are logged, not returned.
func Lookup(ctx context.Context, st Store, key string) string {
	value, found, err := st.Get(ctx, key)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("key", key).Warn("storage lookup failed")
		return ""
	}
	if !found {
		return ""
	}
	return value
}
