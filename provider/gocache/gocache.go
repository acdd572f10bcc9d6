// Package gocache stores snapshots in patrickmn/go-cache, a map with
// per-item expiry and a janitor goroutine. Good for tests and single-process
// deployments.
package gocache

import (
	"context"
	"time"

	gc "github.com/patrickmn/go-cache"

	pr "github.com/unkn0wn-root/scopecache/provider"
)

type Provider struct {
	c *gc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	DefaultTTL      time.Duration // used when Set gets ttl <= 0; 0 => no expiry
	CleanupInterval time.Duration // janitor interval; 0 => 10m
}

func New(cfg Config) *Provider {
	def := cfg.DefaultTTL
	if def <= 0 {
		def = gc.NoExpiration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	return &Provider{c: gc.New(def, cfg.CleanupInterval)}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Delete(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = gc.DefaultExpiration
	}
	p.c.Set(key, value, ttl)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

// Close drops every item. go-cache stops its janitor once the cache is
// garbage collected.
func (p *Provider) Close(_ context.Context) error {
	p.c.Flush()
	return nil
}

// Len includes expired items not yet cleaned up.
func (p *Provider) Len() int { return p.c.ItemCount() }
