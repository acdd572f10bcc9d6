// Package asynchook moves hook work off the cache's goroutines. Events are
// queued to a bounded channel and dropped when it is full, so a slow metrics
// backend never stalls a Query.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FetchEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := scopecache.New(scopecache.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/scopecache"
)

type Hooks struct {
	inner   scopecache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ scopecache.Hooks = (*Hooks)(nil)

func New(inner scopecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k scopecache.Key, bg bool) { h.try(func() { h.inner.FetchStarted(k, bg) }) }
func (h *Hooks) FetchFailed(k scopecache.Key, err error) {
	h.try(func() { h.inner.FetchFailed(k, err) })
}
func (h *Hooks) FetchSucceeded(k scopecache.Key, took time.Duration) {
	h.try(func() { h.inner.FetchSucceeded(k, took) })
}
func (h *Hooks) Invalidated(k scopecache.Key, eager bool) {
	h.try(func() { h.inner.Invalidated(k, eager) })
}
func (h *Hooks) Evicted(k scopecache.Key) { h.try(func() { h.inner.Evicted(k) }) }
func (h *Hooks) SnapshotDiscarded(k scopecache.Key, reason string) {
	h.try(func() { h.inner.SnapshotDiscarded(k, reason) })
}
func (h *Hooks) PersistError(k scopecache.Key, err error) {
	h.try(func() { h.inner.PersistError(k, err) })
}
func (h *Hooks) GenStoreError(op string, err error) { h.try(func() { h.inner.GenStoreError(op, err) }) }
