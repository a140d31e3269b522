package redis_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader/internal/testdeps"
	"github.com/pitabwire/bootloader/storage"
	"github.com/pitabwire/bootloader/storage/redis"
)

func TestRedisBackendSuite(t *testing.T) {
	dsn := testdeps.Valkey(t)
	suite.Run(t, &testdeps.BackendSuite{
		Open: func() (storage.Backend, error) { return redis.New(storage.WithDSN(dsn)) },
	})
}

func TestRedisBadDSN(t *testing.T) {
	_, err := redis.New(storage.WithDSN("://bad-dsn"))
	require.Error(t, err)
}
