package storage

import (
	"strings"
)

// Schemes understood by the storage backends.
const (
	MemScheme    = "mem://"
	RedisScheme  = "redis://"
	ValkeyScheme = "valkey://"
	NatsScheme   = "nats://"
	SqliteScheme = "sqlite://"
)

// A DSN for conveniently handling a URI connection string.
type DSN string

func (d DSN) String() string {
	return string(d)
}

func (d DSN) IsMem() bool {
	return d == "" || strings.HasPrefix(string(d), MemScheme)
}

func (d DSN) IsRedis() bool {
	return strings.HasPrefix(string(d), RedisScheme) || strings.HasPrefix(string(d), "rediss://")
}

func (d DSN) IsValkey() bool {
	return strings.HasPrefix(string(d), ValkeyScheme)
}

func (d DSN) IsNats() bool {
	return strings.HasPrefix(string(d), NatsScheme)
}

func (d DSN) IsSqlite() bool {
	return strings.HasPrefix(string(d), SqliteScheme)
}

// WithScheme swaps the scheme of the DSN, leaving everything after "://" intact.
func (d DSN) WithScheme(scheme string) DSN {
	_, rest, found := strings.Cut(string(d), "://")
	if !found {
		return d
	}
	return DSN(scheme + "://" + rest)
}

// Path returns everything after the scheme separator.
func (d DSN) Path() string {
	_, rest, found := strings.Cut(string(d), "://")
	if !found {
		return string(d)
	}
	return rest
}
