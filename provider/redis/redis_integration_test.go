//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/scopecache/provider"
	"github.com/unkn0wn-root/scopecache/provider/providertest"
	"github.com/unkn0wn-root/scopecache/provider/redis"
)

func newTestClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err(), "failed to connect to Redis")
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider {
		p, err := redis.New(redis.Config{Client: newTestClient(t), Prefix: "scopecache-test:"})
		require.NoError(t, err)
		return p
	}, providertest.Options{PerEntryTTL: true})
}

func TestDefaultTTLApplied(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	p, err := redis.New(redis.Config{Client: client, Prefix: "ttl:", DefaultTTL: time.Minute})
	require.NoError(t, err)

	_, err = p.Set(ctx, "k", []byte("v"), 1, 0)
	require.NoError(t, err)
	ttl, err := client.TTL(ctx, "ttl:k").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
