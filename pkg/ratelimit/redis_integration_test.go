//go:build integration

package ratelimit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/triage/pkg/ratelimit"
)

// startRedis runs a throwaway Redis server in Docker.
func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

// Two limiters on one Redis behave as one budget, the way two replicas of
// the service would.
func TestRedisSharedAcrossInstances(t *testing.T) {
	rdb := startRedis(t)
	a := ratelimit.NewRedis(rdb)
	b := ratelimit.NewRedis(rdb)
	ctx := context.Background()
	key := ratelimit.Key("login", "198.51.100.1")

	for i := range 10 {
		l := a
		if i%2 == 1 {
			l = b
		}
		ok, info, err := l.Allow(ctx, key, 10, 5*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 9-i, info.Remaining)
	}

	ok, _, err := a.Allow(ctx, key, 10, 5*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	ok, _, err = b.Allow(ctx, key, 10, 5*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ttl, err := rdb.PTTL(ctx, ratelimit.DefaultKeyPrefix+key).Result()
	require.NoError(t, err)
	require.Positive(t, ttl)
	require.LessOrEqual(t, ttl, 5*time.Minute)
}
