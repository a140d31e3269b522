package testdeps

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader/storage"
)

// BackendSuite exercises the storage.Backend contract. Embedders set Open.
type BackendSuite struct {
	suite.Suite

	Open func() (storage.Backend, error)
}

func (s *BackendSuite) open() storage.Backend {
	backend, err := s.Open()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = backend.Close() })
	s.Require().NoError(backend.Flush(context.Background()))
	return backend
}

func (s *BackendSuite) TestOperations() {
	ctx := context.Background()
	backend := s.open()

	testCases := []struct {
		name  string
		key   string
		value []byte
	}{
		{name: "simple value", key: "v", value: []byte("3")},
		{name: "empty value", key: "customCss", value: []byte{}},
		{name: "json payload", key: "locale", value: []byte(`{"hello":"world"}`)},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Require().NoError(backend.Set(ctx, tc.key, tc.value))

			value, found, err := backend.Get(ctx, tc.key)
			s.Require().NoError(err)
			s.True(found)
			s.Equal(string(tc.value), string(value))

			exists, err := backend.Exists(ctx, tc.key)
			s.Require().NoError(err)
			s.True(exists)

			s.Require().NoError(backend.Delete(ctx, tc.key))

			_, found, err = backend.Get(ctx, tc.key)
			s.Require().NoError(err)
			s.False(found)
		})
	}
}

func (s *BackendSuite) TestOverwriteAndFlush() {
	ctx := context.Background()
	backend := s.open()

	s.Require().NoError(backend.Set(ctx, "localeVersion", []byte("2")))
	s.Require().NoError(backend.Set(ctx, "localeVersion", []byte("3")))

	value, found, err := backend.Get(ctx, "localeVersion")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("3", string(value))

	s.Require().NoError(backend.Flush(ctx))

	exists, err := backend.Exists(ctx, "localeVersion")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *BackendSuite) TestStoreView() {
	ctx := context.Background()
	st := storage.New(s.open(), storage.WithName("boot"))

	has, err := st.Has(ctx, storage.KeyLang)
	s.Require().NoError(err)
	s.False(has)

	s.Require().NoError(st.Set(ctx, storage.KeyLang, "ja-JP"))

	value, found, err := st.Get(ctx, storage.KeyLang)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("ja-JP", value)
}
