package scopecache

import (
	"runtime/debug"
	"sync"
)

// Subscription marks a key as observed. Observed keys are refetched eagerly
// on invalidation and are never garbage collected.
type Subscription struct {
	c    *Cache
	e    *entry
	key  Key
	once sync.Once
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key { return s.key }

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.c
		c.mu.Lock()
		defer c.mu.Unlock()
		// after Reset the entry is gone and its count went with it
		if c.entries[s.e.id] != s.e || s.e.subs == 0 {
			return
		}
		s.e.subs--
		s.e.lastAccess = c.now()
	})
}

// Subscribe registers an observer for key, creating an Idle entry if needed.
// It does not fetch; pair it with Query.
func (c *Cache) Subscribe(key Key) (*Subscription, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e := c.entryLocked(key)
	e.subs++
	e.lastAccess = c.now()
	return &Subscription{c: c, e: e, key: key}, nil
}

// Unsubscribe is the same as sub.Unsubscribe().
func (c *Cache) Unsubscribe(sub *Subscription) {
	if sub == nil || sub.c != c {
		return
	}
	sub.Unsubscribe()
}

// OnChange registers fn to run after each state transition of key. Calls are
// made from a single goroutine, outside the cache lock, in transition order;
// fn may call back into the cache. The returned func removes the listener.
func (c *Cache) OnChange(key Key, fn func(Snapshot)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	id := key.String()

	c.mu.Lock()
	c.nextLn++
	ln := c.nextLn
	if c.listeners[id] == nil {
		c.listeners[id] = make(map[uint64]func(Snapshot))
	}
	c.listeners[id][ln] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners[id], ln)
			if len(c.listeners[id]) == 0 {
				delete(c.listeners, id)
			}
		})
	}
}

func (c *Cache) queueLocked(e *entry) {
	c.queueSnapshotLocked(e.id, e.snapshot())
}

func (c *Cache) queueSnapshotLocked(id string, snap Snapshot) {
	ls := c.listeners[id]
	if len(ls) == 0 {
		return
	}
	fns := make([]func(Snapshot), 0, len(ls))
	for _, fn := range ls {
		fns = append(fns, fn)
	}
	c.notify.push(func() {
		for _, fn := range fns {
			// one panicking listener must not starve the others
			c.notify.safeRun(func() { fn(snap) })
		}
	})
}

// dispatcher runs queued notifications one by one on its own goroutine. push
// never blocks, so it is safe under the cache lock.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
	log    Logger
}

func newDispatcher(log Logger) *dispatcher {
	d := &dispatcher{log: log, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *dispatcher) push(f func()) {
	d.mu.Lock()
	if !d.closed {
		d.queue = append(d.queue, f)
		d.cond.Signal()
	}
	d.mu.Unlock()
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, f := range batch {
			d.safeRun(f)
		}
	}
}

func (d *dispatcher) safeRun(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(d.log, "change listener panic", Fields{"panic": r, "stack": string(debug.Stack())})
		}
	}()
	f()
}

// close stops accepting work; already queued work still runs.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
}
