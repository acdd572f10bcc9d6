package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/scopecache/provider"
	"github.com/unkn0wn-root/scopecache/provider/providertest"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), Config{LifeWindow: time.Minute, Shards: 16, MaxEntriesInWindow: 1000})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider { return newProvider(t) }, providertest.Options{})
}

func TestLenAndStats(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	_, err := p.Set(ctx, "a", []byte("1"), 1, 0)
	require.NoError(t, err)
	_, _, _ = p.Get(ctx, "a")
	_, _, _ = p.Get(ctx, "b")

	assert.Equal(t, 1, p.Len())
	assert.EqualValues(t, 1, p.Stats().Hits)
	assert.EqualValues(t, 1, p.Stats().Misses)
}

func TestRequiresLifeWindow(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
