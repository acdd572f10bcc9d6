package scopecache

import "time"

func (c *Cache) cleanupLoop() {
	defer c.closeWg.Done()
	t := time.NewTicker(c.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

// sweep drops entries that nobody observes, that have no fetch or
// invalidation pending, and that were idle for longer than GCTime.
func (c *Cache) sweep() int {
	if c.gcTime <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.gcTime)

	var evicted []Key
	c.mu.Lock()
	for id, e := range c.entries {
		if e.subs > 0 || e.fetching || e.invalidatedInFlight {
			continue
		}
		if !e.lastAccess.Before(cutoff) {
			continue
		}
		delete(c.entries, id)
		evicted = append(evicted, e.key)
	}
	c.mu.Unlock()

	for _, k := range evicted {
		c.hooks.Evicted(k)
	}
	if len(evicted) > 0 {
		c.log.Debug("gc sweep", Fields{"evicted": len(evicted)})
	}
	return len(evicted)
}
