// Package testdeps starts the container dependencies used by the networked storage
// backend tests. Tests are skipped when no container runtime is reachable.
package testdeps

import (
	"testing"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	tcvalkey "github.com/testcontainers/testcontainers-go/modules/valkey"

	"github.com/pitabwire/bootloader/storage"
)

const (
	ValkeyImage = "docker.io/valkey/valkey:latest"
	NatsImage   = "docker.io/library/nats:latest"
)

// Valkey starts a valkey container and returns its redis:// DSN.
func Valkey(t *testing.T) storage.DSN {
	t.Helper()
	ctx := t.Context()

	container, err := tcvalkey.Run(ctx, ValkeyImage)
	if err != nil {
		t.Skipf("valkey container unavailable: %v", err)
	}
	t.Cleanup(func() { terminate(t, container) })

	conn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("valkey connection string: %v", err)
	}

	return storage.DSN(conn)
}

// Nats starts a JetStream enabled nats container and returns its nats:// DSN.
func Nats(t *testing.T) storage.DSN {
	t.Helper()
	ctx := t.Context()

	container, err := tcnats.Run(ctx, NatsImage)
	if err != nil {
		t.Skipf("nats container unavailable: %v", err)
	}
	t.Cleanup(func() { terminate(t, container) })

	conn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("nats connection string: %v", err)
	}

	return storage.DSN(conn)
}

func terminate(t *testing.T, container testcontainers.Container) {
	if err := testcontainers.TerminateContainer(container); err != nil {
		util.Log(t.Context()).WithError(err).Error("failed to terminate container")
	}
}
