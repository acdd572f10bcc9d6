package gocache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/scopecache/provider"
	"github.com/unkn0wn-root/scopecache/provider/providertest"
)

func TestConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider {
		return New(Config{CleanupInterval: time.Minute})
	}, providertest.Options{PerEntryTTL: true})
}

func TestForeignValueIsDropped(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	p.c.Set("snap:inv:k", "not bytes", 0)

	_, ok, err := p.Get(ctx, "snap:inv:k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}

func TestCloseFlushes(t *testing.T) {
	ctx := context.Background()
	p := New(Config{DefaultTTL: time.Hour})
	_, err := p.Set(ctx, "k", []byte("v"), 1, 0)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))
	assert.Equal(t, 0, p.Len())
}
