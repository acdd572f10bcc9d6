// Package otter stores snapshots in a maypok86/otter v2 cache with
// size-weighted eviction and per-entry expiry.
package otter

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	pr "github.com/unkn0wn-root/scopecache/provider"
)

type item struct {
	b   []byte
	ttl time.Duration
}

type Provider struct {
	c       *otter.Cache[string, item]
	counter *stats.Counter
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	MaxBytes   uint64        // total payload bytes kept; 0 => 64 MiB
	DefaultTTL time.Duration // used when Set gets ttl <= 0; 0 => 24h
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	def := cfg.DefaultTTL

	counter := stats.NewCounter()
	c, err := otter.New(&otter.Options[string, item]{
		MaximumWeight: cfg.MaxBytes,
		Weigher: func(key string, v item) uint32 {
			return uint32(len(key) + len(v.b))
		},
		StatsRecorder: counter,
		ExpiryCalculator: otter.ExpiryWritingFunc(func(e otter.Entry[string, item]) time.Duration {
			if e.Value.ttl > 0 {
				return e.Value.ttl
			}
			return def
		}),
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, counter: counter}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	return v.b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.c.Set(key, item{b: value, ttl: ttl})
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Invalidate(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.InvalidateAll()
	return nil
}

// Stats returns hit and miss counts.
func (p *Provider) Stats() stats.Stats { return p.counter.Snapshot() }
