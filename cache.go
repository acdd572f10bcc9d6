package scopecache

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
	"golang.org/x/sync/singleflight"

	gen "github.com/unkn0wn-root/scopecache/genstore"
)

type entry struct {
	key Key
	id  string

	value     any
	hasValue  bool
	fetchedAt time.Time
	state     State
	err       *FetchError

	// in-flight fetch; fetching == (state == Fetching)
	fetching bool
	callKey  string
	run      func() (any, error)

	fetcher Fetcher // last supplied, used for eager revalidation
	subs    int

	// stale is set by invalidation and cleared by a fetch started after it.
	stale bool
	// invalidatedInFlight marks an invalidation that arrived during a fetch.
	invalidatedInFlight bool
	gen                 uint64 // generation observed by the last successful fetch

	lastAccess time.Time
}

func (e *entry) snapshot() Snapshot {
	s := Snapshot{
		Key:         e.key,
		Value:       e.value,
		HasValue:    e.hasValue,
		State:       e.state,
		FetchedAt:   e.fetchedAt,
		Subscribers: e.subs,
	}
	if e.err != nil {
		s.Err = e.err
	}
	return s
}

// Cache is a scoped query cache: one instance per signed-in session, shared by
// every consumer of that session. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	seq     uint64
	closed  bool

	listeners map[string]map[uint64]func(Snapshot)
	nextLn    uint64
	notify    *dispatcher

	log        Logger
	hooks      Hooks
	gens       gen.GenStore
	now        func() time.Time
	defaultTTL time.Duration
	gcTime     time.Duration
	sweepEvery time.Duration
	policies   map[string]QueryOptions
	persisters *xsync.Map // tag -> Persister

	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Cache and starts its GC loop.
func New(opts Options) (*Cache, error) {
	c := &Cache{
		entries:    make(map[string]*entry),
		listeners:  make(map[string]map[uint64]func(Snapshot)),
		persisters: xsync.NewMap(),
		policies:   make(map[string]QueryOptions, len(opts.Policies)),
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.notify = newDispatcher(c.log)
	c.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	c.gcTime = coalesce(opts.GCTime, defaultGCTime)
	c.sweepEvery = coalesce(opts.CleanupInterval, defaultSweep)

	c.now = opts.Now
	if c.now == nil {
		c.now = time.Now
	}

	if opts.GenStore != nil {
		c.gens = opts.GenStore
	} else {
		c.gens = gen.NewLocalGenStore(time.Hour, defaultGenKeep)
	}

	for tag, p := range opts.Policies {
		c.policies[tag] = p
	}
	for tag, p := range opts.Persisters {
		if p != nil {
			c.persisters.Store(tag, p)
		}
	}

	if c.gcTime > 0 {
		c.stopCh = make(chan struct{})
		c.closeWg.Add(1)
		go c.cleanupLoop()
	}
	return c, nil
}

// Persist registers (or with nil, removes) the Persister for a tag.
func (c *Cache) Persist(tag string, p Persister) {
	if p == nil {
		c.persisters.Delete(tag)
		return
	}
	c.persisters.Store(tag, p)
}

func (c *Cache) persister(tag string) (Persister, bool) {
	v, ok := c.persisters.Load(tag)
	if !ok {
		return nil, false
	}
	p, ok := v.(Persister)
	return p, ok
}

// Close stops background work and closes the GenStore. In-flight fetches
// finish but their results are dropped.
func (c *Cache) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.stopCh != nil {
			close(c.stopCh)
			c.closeWg.Wait()
		}
		c.notify.close()
		err = c.gens.Close(ctx)
	})
	return err
}

// Query returns the freshest available value for key.
//
// Cached values are returned immediately, fresh or not; a stale value triggers a
// background revalidation unless NoStaleWhileRevalidate is set. Without a cached
// value the caller waits for the fetch, which is shared with every concurrent
// caller of the same key. If ctx ends while waiting, Query returns ctx.Err() and
// the fetch keeps running for the other callers.
//
// The returned error is *InvalidKeyError, *FetchError, ErrClosed, ErrNilFetcher
// or the ctx error. On *FetchError the snapshot still carries the previous value.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts QueryOptions) (Snapshot, error) {
	if err := key.Validate(); err != nil {
		return Snapshot{Key: key}, err
	}
	if fetch == nil {
		return Snapshot{Key: key}, ErrNilFetcher
	}
	opts = c.resolve(key.Tag(), opts)

	observed, genOK := c.observeGen(ctx, key)
	if !opts.Disabled {
		c.hydrate(ctx, key, observed, genOK)
	}

	var fx effects
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{Key: key}, ErrClosed
	}

	now := c.now()
	e := c.entryLocked(key)
	e.lastAccess = now

	if opts.Disabled {
		snap := e.snapshot()
		c.mu.Unlock()
		return snap, nil
	}
	// only enabled queries may be revalidated eagerly
	e.fetcher = fetch

	if genOK && e.hasValue && !e.fetching && observed != e.gen && !e.stale {
		// invalidated by another replica
		e.stale = true
		if e.state == Fresh {
			e.state = Stale
		}
	}

	expired := e.hasValue && now.Sub(e.fetchedAt) > opts.TTL
	if e.state == Fresh && (expired || e.stale) {
		e.state = Stale
		c.queueLocked(e)
	}

	if e.hasValue && !expired && !e.stale {
		snap := e.snapshot()
		c.mu.Unlock()
		return snap, nil
	}

	if e.hasValue && !opts.NoStaleWhileRevalidate {
		if !e.fetching {
			c.startFetchLocked(ctx, e, true, &fx)
		}
		snap := e.snapshot()
		c.mu.Unlock()
		fx.run()
		return snap, nil
	}

	ch := c.joinLocked(ctx, e, &fx)
	c.mu.Unlock()
	fx.run()

	select {
	case r := <-ch:
		snap, _ := r.Val.(Snapshot)
		if r.Err != nil {
			return snap, r.Err
		}
		return snap, nil
	case <-ctx.Done():
		snap, _ := c.Peek(key)
		return snap, ctx.Err()
	}
}

// Peek returns the current snapshot without fetching or creating an entry.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{Key: key}, false
	}
	return e.snapshot(), true
}

// SetValue stores v as a fresh value for key. An in-flight fetch is not
// cancelled and will overwrite v when it completes.
func (c *Cache) SetValue(ctx context.Context, key Key, v any) error {
	if err := key.Validate(); err != nil {
		return err
	}
	observed, genOK := c.observeGen(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	now := c.now()
	e := c.entryLocked(key)
	e.value = v
	e.hasValue = true
	if now.After(e.fetchedAt) {
		e.fetchedAt = now
	}
	e.err = nil
	e.stale = false
	if genOK {
		e.gen = observed
	}
	e.lastAccess = now
	if !e.fetching {
		e.state = Fresh
	}
	c.queueLocked(e)
	return nil
}

// Remove drops the entry for key and its persisted snapshot.
func (c *Cache) Remove(ctx context.Context, key Key) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if ok {
		delete(c.entries, e.id)
		c.queueSnapshotLocked(e.id, Snapshot{Key: key})
	}
	c.mu.Unlock()

	if p, ok := c.persister(key.Tag()); ok {
		if err := p.Delete(ctx, key); err != nil {
			c.log.Warn("persisted snapshot delete failed", Fields{"key": key.String(), "err": err})
			c.hooks.PersistError(key, err)
		}
	}
}

// Reset drops every entry and the persisted snapshots of the dropped keys.
// Call it on sign-out so no scoped data outlives the session. Listeners stay
// registered and receive an empty Idle snapshot.
func (c *Cache) Reset(ctx context.Context) {
	c.mu.Lock()
	dropped := make([]Key, 0, len(c.entries))
	for id, e := range c.entries {
		dropped = append(dropped, e.key)
		c.queueSnapshotLocked(id, Snapshot{Key: e.key})
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for _, k := range dropped {
		p, ok := c.persister(k.Tag())
		if !ok {
			continue
		}
		if err := p.Delete(ctx, k); err != nil {
			c.log.Warn("persisted snapshot delete failed", Fields{"key": k.String(), "err": err})
			c.hooks.PersistError(k, err)
		}
	}
	c.log.Info("cache reset", Fields{"dropped": len(dropped)})
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key, id: id, state: Idle, lastAccess: c.now()}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) resolve(tag string, o QueryOptions) QueryOptions {
	p := c.policies[tag]
	o.TTL = coalesce(o.TTL, coalesce(p.TTL, c.defaultTTL))
	o.Disabled = o.Disabled || p.Disabled
	o.NoStaleWhileRevalidate = o.NoStaleWhileRevalidate || p.NoStaleWhileRevalidate
	return o
}

// attachedLocked reports whether e is still the live entry for its key.
func (c *Cache) attachedLocked(e *entry) bool {
	return !c.closed && c.entries[e.id] == e
}
