// Package genstore holds invalidation generations.
//
// Every key and every tag owns a counter. Invalidating bumps the counter; a
// cached value remembers the counters it was fetched under and is treated as
// invalidated once they move. LocalGenStore keeps counters in-process;
// RedisGenStore shares them between replicas so an invalidation performed by
// one instance is observed by the others.
package genstore

import (
	"context"
	"time"
)

type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, name string) (uint64, error)
	// SnapshotMany returns generations for many names; missing => 0.
	SnapshotMany(ctx context.Context, names []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, name string) (uint64, error)
	// Cleanup prunes counters not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
