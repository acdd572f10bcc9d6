package scopecache

import "time"

const (
	defaultTTL     = 5 * time.Minute
	defaultGCTime  = 5 * time.Minute
	defaultSweep   = time.Minute
	defaultGenKeep = 30 * 24 * time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// effects collects work that must run after the cache lock is released.
type effects []func()

func (fx *effects) add(f func()) { *fx = append(*fx, f) }

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}
