package scopecache

import (
	"context"
	"errors"
)

// Matcher selects the keys an invalidation applies to.
type Matcher func(Key) bool

// MatchKey matches exactly k.
func MatchKey(k Key) Matcher {
	id := k.String()
	return func(o Key) bool { return o.String() == id }
}

// MatchTags matches every key carrying one of tags.
func MatchTags(tags ...string) Matcher {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return func(k Key) bool {
		_, ok := set[k.Tag()]
		return ok
	}
}

// MatchPrefix matches keys of tag whose scope starts with scope, e.g. every
// branch of one user.
func MatchPrefix(tag string, scope ...string) Matcher {
	s := append([]string(nil), scope...)
	return func(k Key) bool { return k.HasPrefix(tag, s...) }
}

// MatchAll matches every key.
func MatchAll() Matcher { return func(Key) bool { return true } }

// Invalidate marks every entry selected by m as stale and returns how many
// matched. Subscribed entries refetch in the background right away; the rest
// refetch on their next Query. A fetch already in flight is not cancelled: its
// result is stored as Stale and, if the key is subscribed, one follow-up fetch
// runs.
//
// The key generation of every match is bumped, so replicas sharing the
// GenStore treat their copies as stale too.
func (c *Cache) Invalidate(ctx context.Context, m Matcher) int {
	if m == nil {
		return 0
	}
	matched := c.matching(m)
	names := make([]string, 0, len(matched))
	for _, k := range matched {
		names = append(names, k.genKey())
	}
	c.bump(ctx, names)
	return c.markStale(ctx, m)
}

// InvalidateKey invalidates exactly k. The key generation is bumped even when
// this process holds no entry for k.
func (c *Cache) InvalidateKey(ctx context.Context, k Key) int {
	if k.Validate() != nil {
		return 0
	}
	c.bump(ctx, []string{k.genKey()})
	return c.markStale(ctx, MatchKey(k))
}

// InvalidateTags invalidates every key carrying one of tags, including keys
// only other replicas hold: tag generations are bumped too.
func (c *Cache) InvalidateTags(ctx context.Context, tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			names = append(names, tagGenKey(t))
		}
	}
	c.bump(ctx, names)
	return c.markStale(ctx, MatchTags(tags...))
}

// InvalidatePrefix invalidates the keys of tag whose scope starts with scope.
func (c *Cache) InvalidatePrefix(ctx context.Context, tag string, scope ...string) int {
	return c.Invalidate(ctx, MatchPrefix(tag, scope...))
}

// Trigger is a named invalidation, e.g. "window-focus" or "reconnect".
type Trigger struct {
	Name  string
	Match Matcher
}

// Fire invalidates the keys selected by t.
func (c *Cache) Fire(ctx context.Context, t Trigger) int {
	n := c.Invalidate(ctx, t.Match)
	c.log.Debug("trigger fired", Fields{"trigger": t.Name, "matched": n})
	return n
}

func (c *Cache) matching(m Matcher) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Key
	for _, e := range c.entries {
		if m(e.key) {
			out = append(out, e.key)
		}
	}
	return out
}

func (c *Cache) bump(ctx context.Context, names []string) {
	var errs []error
	for _, n := range names {
		if _, err := c.gens.Bump(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.log.Warn("generation bump failed", Fields{"names": len(names), "err": err})
		c.hooks.GenStoreError("bump", err)
	}
}

func (c *Cache) markStale(ctx context.Context, m Matcher) int {
	var fx effects
	n := 0

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	for _, e := range c.entries {
		if !m(e.key) {
			continue
		}
		n++
		key := e.key

		if e.fetching {
			e.invalidatedInFlight = true
			fx.add(func() { c.hooks.Invalidated(key, false) })
			continue
		}

		e.stale = true
		if e.state == Fresh {
			e.state = Stale
			c.queueLocked(e)
		}
		eager := e.subs > 0 && e.fetcher != nil
		if eager {
			c.startFetchLocked(ctx, e, true, &fx)
		}
		fx.add(func() { c.hooks.Invalidated(key, eager) })
	}
	c.mu.Unlock()

	fx.run()
	if n > 0 {
		c.log.Debug("invalidated", Fields{"matched": n})
	}
	return n
}
