//go:build integration

package genstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisGenStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to connect to Redis: %v", err)
	}
	s, err := NewRedisGenStore(RedisConfig{Client: client, Namespace: "test-" + uuid.NewString(), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestRedisBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)

	for want := uint64(1); want <= 3; want++ {
		got, err := s.Bump(ctx, "tag:productCount")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("bump=%d want %d", got, want)
		}
	}

	got, err := s.SnapshotMany(ctx, []string{"tag:productCount", "key:missing"})
	if err != nil {
		t.Fatal(err)
	}
	if got["tag:productCount"] != 3 || got["key:missing"] != 0 {
		t.Fatalf("got=%v", got)
	}

	g, err := s.Snapshot(ctx, "key:missing")
	if err != nil || g != 0 {
		t.Fatalf("snapshot=%d err=%v", g, err)
	}
}
