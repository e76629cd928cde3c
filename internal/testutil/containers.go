//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartRedis starts a throwaway Redis container and returns its URL. The
// container is terminated when the test finishes.
func StartRedis(t *testing.T) string {
	t.Helper()
	c := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	})
	host, port := endpoint(t, c, "6379")
	return fmt.Sprintf("redis://%s:%s/0", host, port)
}

// StartPostgres starts a throwaway PostgreSQL container and returns a
// postgres:// database URL for it.
func StartPostgres(t *testing.T) string {
	t.Helper()
	c := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "snapvault",
			"POSTGRES_PASSWORD": "snapvault",
			"POSTGRES_DB":       "snapvault",
		},
		// the server restarts once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	host, port := endpoint(t, c, "5432")
	return fmt.Sprintf("postgres://snapvault:snapvault@%s:%s/snapvault?sslmode=disable", host, port)
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start %s container", req.Image)

	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate %s container: %v", req.Image, err)
		}
	})
	return c
}

func endpoint(t *testing.T, c testcontainers.Container, port string) (string, string) {
	t.Helper()
	ctx := context.Background()

	host, err := c.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err, "Failed to get container port")

	return host, mapped.Port()
}
