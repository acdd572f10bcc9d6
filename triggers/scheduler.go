// Package triggers fires scopecache triggers on a schedule, for queries that
// must revalidate periodically even when nothing invalidates them.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unkn0wn-root/scopecache"
)

var (
	ErrDuplicate   = errors.New("triggers: trigger already scheduled")
	ErrNoName      = errors.New("triggers: trigger name is required")
	ErrNilMatcher  = errors.New("triggers: trigger matcher is required")
	ErrInvalidSpec = errors.New("triggers: invalid schedule")
)

// Firer runs a trigger. *scopecache.Cache implements it.
type Firer interface {
	Fire(ctx context.Context, t scopecache.Trigger) int
}

type Options struct {
	Logger   scopecache.Logger // nil => no-op
	Location *time.Location    // nil => time.Local
	// Timeout bounds one firing, including the GenStore round trips. 0 => 10s.
	Timeout time.Duration
}

// Scheduler fires triggers on cron schedules. A firing that is still running
// when its next tick comes is skipped.
type Scheduler struct {
	cron    *cron.Cron
	target  Firer
	log     scopecache.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a 5-field cron expression or a descriptor such as
// "@hourly" or "@every 30s".
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidSpec, fmt.Errorf("%q: %w", spec, err))
	}
	return s, nil
}

func New(target Firer, opts Options) *Scheduler {
	log := opts.Logger
	if log == nil {
		log = scopecache.NopLogger{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cl := cronLogger{log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		target:  target,
		log:     log,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules t. Names are unique within a Scheduler.
func (s *Scheduler) Add(spec string, t scopecache.Trigger) error {
	if t.Name == "" {
		return ErrNoName
	}
	if t.Match == nil {
		return ErrNilMatcher
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.Name)
	}
	s.entries[t.Name] = s.cron.Schedule(sched, cron.FuncJob(s.job(t)))
	return nil
}

// Remove unschedules the named trigger and reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	if ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	return ok
}

// Names returns the scheduled trigger names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for n := range s.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Next returns the next firing time of the named trigger.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling, cancels running firings and waits for them until
// ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) job(t scopecache.Trigger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		n := s.target.Fire(ctx, t)
		s.log.Debug("scheduled trigger fired", scopecache.Fields{"trigger": t.Name, "matched": n})
	}
}

// cronLogger adapts scopecache.Logger to cron.Logger.
type cronLogger struct {
	log scopecache.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	f := pairs(keysAndValues)
	f["err"] = err
	l.log.Error(msg, f)
}

func pairs(kv []any) scopecache.Fields {
	f := make(scopecache.Fields, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
