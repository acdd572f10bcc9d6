package scopecache

import "time"

// Hooks are callbacks for high-signal cache events, meant for metrics and
// error reporting. They run synchronously outside the cache lock, so they
// must be cheap; wrap slow ones with hooks/async.
type Hooks interface {
	// A fetch was started. background is true when the caller did not wait for it
	// (stale-while-revalidate or eager revalidation after invalidation).
	FetchStarted(key Key, background bool)
	FetchSucceeded(key Key, took time.Duration)
	FetchFailed(key Key, err error)

	// An entry was marked stale. eager is true when a refetch was started right away.
	Invalidated(key Key, eager bool)

	// An idle entry with no subscribers was garbage collected.
	Evicted(key Key)

	// A persisted snapshot was dropped on load.
	// reason ∈ {"gen_mismatch", "corrupt", "decode"}
	SnapshotDiscarded(key Key, reason string)
	PersistError(key Key, err error)

	// GenStore call failed. op ∈ {"snapshot", "bump"}
	GenStoreError(op string, err error)
}

// NopHooks is the default.
type NopHooks struct{}

func (NopHooks) FetchStarted(Key, bool)            {}
func (NopHooks) FetchSucceeded(Key, time.Duration) {}
func (NopHooks) FetchFailed(Key, error)            {}
func (NopHooks) Invalidated(Key, bool)             {}
func (NopHooks) Evicted(Key)                       {}
func (NopHooks) SnapshotDiscarded(Key, string)     {}
func (NopHooks) PersistError(Key, error)           {}
func (NopHooks) GenStoreError(string, error)       {}

// MultiHooks fans every event out to each hook in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) FetchStarted(k Key, bg bool) {
	for _, h := range m {
		h.FetchStarted(k, bg)
	}
}

func (m MultiHooks) FetchSucceeded(k Key, took time.Duration) {
	for _, h := range m {
		h.FetchSucceeded(k, took)
	}
}

func (m MultiHooks) FetchFailed(k Key, err error) {
	for _, h := range m {
		h.FetchFailed(k, err)
	}
}

func (m MultiHooks) Invalidated(k Key, eager bool) {
	for _, h := range m {
		h.Invalidated(k, eager)
	}
}

func (m MultiHooks) Evicted(k Key) {
	for _, h := range m {
		h.Evicted(k)
	}
}

func (m MultiHooks) SnapshotDiscarded(k Key, reason string) {
	for _, h := range m {
		h.SnapshotDiscarded(k, reason)
	}
}

func (m MultiHooks) PersistError(k Key, err error) {
	for _, h := range m {
		h.PersistError(k, err)
	}
}

func (m MultiHooks) GenStoreError(op string, err error) {
	for _, h := range m {
		h.GenStoreError(op, err)
	}
}
