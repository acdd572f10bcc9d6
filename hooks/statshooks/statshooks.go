// Package statshooks counts cache events with a bool64/stats Tracker, which
// can be backed by Prometheus or any other stats sink.
package statshooks

import (
	"context"
	"time"

	"github.com/bool64/stats"

	"github.com/unkn0wn-root/scopecache"
)

const (
	MetricFetch             = "scopecache_fetch"
	MetricFetchBackground   = "scopecache_fetch_background"
	MetricFetchFailed       = "scopecache_fetch_failed"
	MetricFetchSeconds      = "scopecache_fetch_seconds"
	MetricInvalidated       = "scopecache_invalidated"
	MetricEvicted           = "scopecache_evicted"
	MetricSnapshotDiscarded = "scopecache_snapshot_discarded"
	MetricPersistError      = "scopecache_persist_error"
	MetricGenStoreError     = "scopecache_genstore_error"
)

type Hooks struct {
	st   stats.Tracker
	name string
}

var _ scopecache.Hooks = (*Hooks)(nil)

// New tracks to st. name is attached as the "name" label so several caches
// can share one tracker.
func New(st stats.Tracker, name string) *Hooks {
	if st == nil {
		st = stats.NoOp{}
	}
	return &Hooks{st: st, name: name}
}

func (h *Hooks) add(metric string, labels ...string) {
	h.st.Add(context.Background(), metric, 1, append([]string{"name", h.name}, labels...)...)
}

func (h *Hooks) FetchStarted(k scopecache.Key, background bool) {
	if background {
		h.add(MetricFetchBackground, "tag", k.Tag())
		return
	}
	h.add(MetricFetch, "tag", k.Tag())
}

func (h *Hooks) FetchSucceeded(k scopecache.Key, took time.Duration) {
	h.st.Add(context.Background(), MetricFetchSeconds, took.Seconds(), "name", h.name, "tag", k.Tag())
}

func (h *Hooks) FetchFailed(k scopecache.Key, _ error) { h.add(MetricFetchFailed, "tag", k.Tag()) }
func (h *Hooks) Evicted(k scopecache.Key)              { h.add(MetricEvicted, "tag", k.Tag()) }

func (h *Hooks) Invalidated(k scopecache.Key, eager bool) {
	mode := "lazy"
	if eager {
		mode = "eager"
	}
	h.add(MetricInvalidated, "tag", k.Tag(), "mode", mode)
}

func (h *Hooks) SnapshotDiscarded(k scopecache.Key, reason string) {
	h.add(MetricSnapshotDiscarded, "tag", k.Tag(), "reason", reason)
}

func (h *Hooks) PersistError(k scopecache.Key, _ error) { h.add(MetricPersistError, "tag", k.Tag()) }
func (h *Hooks) GenStoreError(op string, _ error)       { h.add(MetricGenStoreError, "op", op) }
