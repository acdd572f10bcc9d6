package scopecache

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// startFetchLocked marks e Fetching and launches its fetch on the singleflight
// group. Every fetch gets its own call key, so an entry recreated after Reset
// never joins a call that belongs to the dropped one.
func (c *Cache) startFetchLocked(ctx context.Context, e *entry, background bool, fx *effects) <-chan singleflight.Result {
	c.seq++
	e.callKey = e.id + "@" + strconv.FormatUint(c.seq, 10)
	e.fetching = true
	e.stale = false
	e.invalidatedInFlight = false
	e.state = Fetching

	fetch := e.fetcher
	fctx := context.WithoutCancel(ctx)
	e.run = func() (any, error) { return c.runFetch(fctx, e, fetch) }
	ch := c.group.DoChan(e.callKey, e.run)

	c.queueLocked(e)
	key := e.key
	fx.add(func() { c.hooks.FetchStarted(key, background) })
	return ch
}

// joinLocked returns the channel of the in-flight fetch, starting one if needed.
func (c *Cache) joinLocked(ctx context.Context, e *entry, fx *effects) <-chan singleflight.Result {
	if e.fetching {
		// the call stays registered until runFetch clears e.fetching under c.mu
		return c.group.DoChan(e.callKey, e.run)
	}
	return c.startFetchLocked(ctx, e, false, fx)
}

// runFetch executes one fetch and commits its outcome. Its result (a Snapshot
// and the shared *FetchError) is delivered to every caller joined on the call.
func (c *Cache) runFetch(ctx context.Context, e *entry, fetch Fetcher) (any, error) {
	key := e.key
	var observed uint64
	var genOK bool
	c.guard("generation snapshot", func() { observed, genOK = c.observeGen(ctx, key) })

	start := time.Now()
	v, err := safeFetch(ctx, fetch)
	took := time.Since(start)

	var fx effects
	c.mu.Lock()
	c.group.Forget(e.callKey)
	e.fetching = false
	e.run = nil
	attached := c.attachedLocked(e)

	var ferr *FetchError
	if err != nil {
		ferr = &FetchError{Key: key, Err: err}
		e.err = ferr
		e.state = Errored
		// next Query retries; the value, if any, is kept
		e.stale = true
		fx.add(func() {
			c.log.Warn("fetch failed", Fields{"tag": key.Tag(), "key": key.String(), "err": err})
			c.hooks.FetchFailed(key, ferr)
		})
	} else {
		e.value = v
		e.hasValue = true
		if now := c.now(); now.After(e.fetchedAt) {
			e.fetchedAt = now
		}
		e.err = nil
		if genOK {
			e.gen = observed
		}
		e.state = Fresh
		fx.add(func() { c.hooks.FetchSucceeded(key, took) })
	}

	followUp := false
	if e.invalidatedInFlight {
		e.invalidatedInFlight = false
		e.stale = true
		if e.state == Fresh {
			e.state = Stale
		}
		followUp = attached && e.subs > 0 && e.fetcher != nil
	}

	snap := e.snapshot()
	if attached {
		c.queueSnapshotLocked(e.id, snap)
		if followUp {
			c.startFetchLocked(ctx, e, true, &fx)
		}
	} else {
		fx.add(func() { c.log.Debug("fetch result discarded", keyFields(key)) })
	}
	c.mu.Unlock()

	// the outcome is committed; a panic below must not reach singleflight,
	// which would re-panic it on a goroutine nobody can recover
	if attached && err == nil && genOK {
		c.guard("persist", func() {
			c.persist(ctx, key, Persisted{Value: v, FetchedAt: snap.FetchedAt, Gen: observed})
		})
	}
	for _, f := range fx {
		c.guard("hook", f)
	}

	if ferr != nil {
		return snap, ferr
	}
	return snap, nil
}

// guard runs f and logs instead of propagating a panic.
func (c *Cache) guard(what string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(c.log, "recovered panic", Fields{"in": what, "panic": r, "stack": string(debug.Stack())})
		}
	}()
	f()
}

// logPanic is used from recovery paths, where the logger itself may be the
// thing that panicked.
func logPanic(log Logger, msg string, f Fields) {
	defer func() { _ = recover() }()
	log.Error(msg, f)
}

func safeFetch(ctx context.Context, fetch Fetcher) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &panicError{value: r}
		}
	}()
	return fetch(ctx)
}

// observeGen returns the sum of the key and tag generations. ok is false when
// the GenStore failed; callers then skip generation checks.
func (c *Cache) observeGen(ctx context.Context, key Key) (uint64, bool) {
	kg, tg := key.genKey(), tagGenKey(key.Tag())
	gens, err := c.gens.SnapshotMany(ctx, []string{kg, tg})
	if err != nil {
		c.log.Warn("generation snapshot failed", Fields{"key": key.String(), "err": err})
		c.hooks.GenStoreError("snapshot", err)
		return 0, false
	}
	return gens[kg] + gens[tg], true
}
