package scopecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/scopecache/codec"
	"github.com/unkn0wn-root/scopecache/internal/wire"
	"github.com/unkn0wn-root/scopecache/provider"
)

var (
	// ErrSnapshotCorrupt is returned by Store.Load for bytes that are not a valid
	// snapshot frame. The entry has already been deleted.
	ErrSnapshotCorrupt = errors.New("scopecache: corrupt persisted snapshot")
	// ErrSnapshotDecode is returned by Store.Load when the codec rejects the
	// payload. The entry has already been deleted.
	ErrSnapshotDecode = errors.New("scopecache: persisted snapshot decode failed")
)

// SetCostFunc computes the provider cost of one stored snapshot.
type SetCostFunc func(key string, raw []byte) int64

// StoreOptions configure a Store.
type StoreOptions[V any] struct {
	Namespace      string            // required; scopes the storage keys
	Provider       provider.Provider // required
	Codec          codec.Codec[V]    // required
	TTL            time.Duration     // 0 => 24h
	ComputeSetCost SetCostFunc       // nil => 1
}

// Store is a Persister for values of type V on top of a byte Provider.
// Snapshots are framed with their generation and fetch time.
type Store[V any] struct {
	ns       string
	provider provider.Provider
	codec    codec.Codec[V]
	ttl      time.Duration
	cost     SetCostFunc
}

var _ Persister = (*Store[int])(nil)

func NewStore[V any](opts StoreOptions[V]) (*Store[V], error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("scopecache: store namespace is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("scopecache: store provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("scopecache: store codec is required")
	}
	s := &Store[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		ttl:      coalesce(opts.TTL, 24*time.Hour),
		cost:     opts.ComputeSetCost,
	}
	if s.cost == nil {
		s.cost = func(string, []byte) int64 { return 1 }
	}
	return s, nil
}

func (s *Store[V]) storageKey(k Key) string { return "snap:" + s.ns + ":" + k.String() }

func (s *Store[V]) Load(ctx context.Context, k Key) (Persisted, bool, error) {
	sk := s.storageKey(k)
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil || !ok {
		return Persisted{}, false, err
	}
	snap, err := wire.Decode(raw)
	if err != nil {
		_ = s.provider.Del(ctx, sk) // self-heal
		return Persisted{}, false, ErrSnapshotCorrupt
	}
	v, err := s.codec.Decode(snap.Payload)
	if err != nil {
		_ = s.provider.Del(ctx, sk)
		return Persisted{}, false, fmt.Errorf("%w: %v", ErrSnapshotDecode, err)
	}
	return Persisted{Value: v, FetchedAt: snap.FetchedAt, Gen: snap.Gen}, true, nil
}

func (s *Store[V]) Store(ctx context.Context, k Key, p Persisted) error {
	v, ok := p.Value.(V)
	if !ok {
		return fmt.Errorf("%w: store %s cannot persist %T", ErrTypeMismatch, s.ns, p.Value)
	}
	payload, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	sk := s.storageKey(k)
	raw := wire.Encode(wire.Snapshot{Gen: p.Gen, FetchedAt: p.FetchedAt, Payload: payload})
	_, err = s.provider.Set(ctx, sk, raw, s.cost(sk, raw), s.ttl)
	return err
}

func (s *Store[V]) Delete(ctx context.Context, k Key) error {
	return s.provider.Del(ctx, s.storageKey(k))
}

// Close closes the underlying provider.
func (s *Store[V]) Close(ctx context.Context) error { return s.provider.Close(ctx) }

// hydrate seeds an entry without a value from its persisted snapshot. The
// snapshot is served as Stale so the next Query revalidates it.
func (c *Cache) hydrate(ctx context.Context, key Key, observed uint64, genOK bool) {
	p, ok := c.persister(key.Tag())
	if !ok {
		return
	}

	c.mu.Lock()
	e, exists := c.entries[key.String()]
	need := !c.closed && (!exists || (!e.hasValue && !e.fetching))
	c.mu.Unlock()
	if !need {
		return
	}

	rec, found, err := p.Load(ctx, key)
	switch {
	case errors.Is(err, ErrSnapshotCorrupt):
		c.hooks.SnapshotDiscarded(key, "corrupt")
		return
	case errors.Is(err, ErrSnapshotDecode):
		c.hooks.SnapshotDiscarded(key, "decode")
		return
	case err != nil:
		c.log.Warn("persisted snapshot load failed", Fields{"key": key.String(), "err": err})
		c.hooks.PersistError(key, err)
		return
	case !found:
		return
	}

	if !genOK || rec.Gen != observed {
		c.hooks.SnapshotDiscarded(key, "gen_mismatch")
		if err := p.Delete(ctx, key); err != nil {
			c.hooks.PersistError(key, err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	e = c.entryLocked(key)
	if e.hasValue {
		return
	}
	e.value = rec.Value
	e.hasValue = true
	if rec.FetchedAt.After(e.fetchedAt) {
		e.fetchedAt = rec.FetchedAt
	}
	e.gen = rec.Gen
	e.stale = true
	if !e.fetching {
		e.state = Stale
	}
	c.queueLocked(e)
}

func (c *Cache) persist(ctx context.Context, key Key, rec Persisted) {
	p, ok := c.persister(key.Tag())
	if !ok {
		return
	}
	if err := p.Store(ctx, key, rec); err != nil {
		c.log.Warn("persist snapshot failed", Fields{"key": key.String(), "err": err})
		c.hooks.PersistError(key, err)
	}
}
