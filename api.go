package scopecache

import (
	"context"
	"fmt"
	"time"

	gen "github.com/unkn0wn-root/scopecache/genstore"
)

// Fetcher loads the value for one key from the remote data source. The context
// is detached from the caller's cancellation because one fetch may serve many
// callers; timeouts belong inside the fetcher.
type Fetcher func(ctx context.Context) (any, error)

// QueryOptions tune a single Query. The zero value means: cache TTL, enabled,
// stale-while-revalidate on.
type QueryOptions struct {
	TTL                    time.Duration // max age before a value is Stale; 0 => policy or Options.DefaultTTL
	Disabled               bool          // return the cached snapshot as-is, never fetch
	NoStaleWhileRevalidate bool          // wait for the refetch instead of serving a stale value
}

// Options configure a Cache. All fields are optional.
type Options struct {
	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	DefaultTTL      time.Duration // 0 => 5m
	GCTime          time.Duration // idle time before an unsubscribed entry is dropped; 0 => 5m, <0 disables GC
	CleanupInterval time.Duration // GC sweep interval; 0 => 1m

	// GenStore holds invalidation generations. nil => in-process LocalGenStore.
	// Share a RedisGenStore between replicas to propagate invalidations.
	GenStore gen.GenStore

	// Policies are per-tag defaults, merged under the options of each call.
	Policies map[string]QueryOptions

	// Persisters keep snapshots of a tag's values outside the process. A
	// persisted value is served as Stale until the first fetch completes.
	Persisters map[string]Persister

	Now func() time.Time // nil => time.Now
}

// Snapshot is a point-in-time copy of an entry.
type Snapshot struct {
	Key         Key
	Value       any
	HasValue    bool
	State       State
	Err         error // *FetchError of the last failed fetch; nil after a success
	FetchedAt   time.Time
	Subscribers int
}

// Result is the typed form of a Snapshot.
type Result[V any] struct {
	Value     V
	HasValue  bool
	State     State
	Err       error
	FetchedAt time.Time
}

// As converts a Snapshot into a Result[V].
func As[V any](s Snapshot) (Result[V], error) {
	r := Result[V]{HasValue: s.HasValue, State: s.State, Err: s.Err, FetchedAt: s.FetchedAt}
	if !s.HasValue {
		return r, nil
	}
	v, ok := s.Value.(V)
	if !ok {
		r.HasValue = false
		return r, fmt.Errorf("%w: key %s holds %T", ErrTypeMismatch, s.Key, s.Value)
	}
	r.Value = v
	return r, nil
}

// Get is the typed Query.
func Get[V any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (V, error), opts QueryOptions) (Result[V], error) {
	if fetch == nil {
		return Result[V]{}, ErrNilFetcher
	}
	snap, err := c.Query(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)
	res, convErr := As[V](snap)
	if err != nil {
		return res, err
	}
	return res, convErr
}

// Set seeds a typed value, e.g. after an optimistic update.
func Set[V any](ctx context.Context, c *Cache, key Key, v V) error {
	return c.SetValue(ctx, key, v)
}

// Persisted is what a Persister stores for one key.
type Persisted struct {
	Value     any
	FetchedAt time.Time
	Gen       uint64
}

// Persister stores snapshots of query results, e.g. in Redis, so a restarted
// process can show last-known data while it revalidates. See Store.
type Persister interface {
	Load(ctx context.Context, key Key) (Persisted, bool, error)
	Store(ctx context.Context, key Key, p Persisted) error
	Delete(ctx context.Context, key Key) error
}
