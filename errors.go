package scopecache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Cache.
	ErrClosed = errors.New("scopecache: cache closed")
	// ErrNilFetcher is returned when Query is called without a fetcher.
	ErrNilFetcher = errors.New("scopecache: fetcher is required")
	// ErrTypeMismatch is returned by Get/As when the cached value has another type.
	ErrTypeMismatch = errors.New("scopecache: cached value type mismatch")
)

// InvalidKeyError reports a key that cannot address an entry, typically a
// branch-scoped query issued while no branch is active. It is returned before
// any fetch is attempted.
type InvalidKeyError struct {
	Key    Key
	Index  int // scope position of the missing value, or TagIndex
	Reason string
}

// TagIndex is the InvalidKeyError.Index of an error about the tag itself.
const TagIndex = -1

func (e *InvalidKeyError) Error() string {
	if e.Index == TagIndex {
		return fmt.Sprintf("scopecache: invalid key: %s", e.Reason)
	}
	return fmt.Sprintf("scopecache: invalid key %q: %s at scope[%d]", e.Key.Tag(), e.Reason, e.Index)
}

// FetchError wraps a fetcher failure. The same *FetchError value is stored on
// the entry and returned to every caller that waited on that fetch.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("scopecache: fetch %q failed: %v", e.Key.Tag(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// panicError is what a recovered fetcher panic turns into.
type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("fetcher panic: %v", p.value) }
