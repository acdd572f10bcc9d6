package genstore

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	gen      uint64
	bumpedAt time.Time
}

// LocalGenStore keeps generations in a map guarded by a RWMutex, with an
// optional background loop pruning counters idle longer than retention.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]counter

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

// NewLocalGenStore creates a store. The cleanup loop runs only when both
// cleanupInterval and retention are positive.
func NewLocalGenStore(cleanupInterval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{gens: make(map[string]counter)}
	if cleanupInterval <= 0 || retention <= 0 {
		return s
	}

	s.stopCh = make(chan struct{})
	ticker := time.NewTicker(cleanupInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup(retention)
			case <-s.stopCh:
				return
			}
		}
	}()
	return s
}

func (s *LocalGenStore) Snapshot(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	g := s.gens[name].gen
	s.mu.RUnlock()
	return g, nil
}

// SnapshotMany reads all names under a single read lock.
func (s *LocalGenStore) SnapshotMany(_ context.Context, names []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(names))
	s.mu.RLock()
	for _, n := range names {
		out[n] = s.gens[n].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Bump(_ context.Context, name string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	c := s.gens[name]
	c.gen++
	c.bumpedAt = now
	s.gens[name] = c
	s.mu.Unlock()
	return c.gen, nil
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for n, c := range s.gens {
		if c.bumpedAt.Before(cutoff) {
			delete(s.gens, n)
		}
	}
	s.mu.Unlock()
}

// Len returns the number of tracked counters.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *LocalGenStore) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
