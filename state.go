package scopecache

// State is the lifecycle state of a cache entry.
type State uint8

const (
	// Idle entries exist but were never fetched.
	Idle State = iota
	// Fetching means a fetch is in flight. The previous value, if any, stays readable.
	Fetching
	// Fresh values are younger than their TTL and were not invalidated.
	Fresh
	// Stale values are past their TTL or were invalidated.
	Stale
	// Errored means the last fetch failed. The previous value, if any, is kept.
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}
