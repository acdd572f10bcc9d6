// Package providertest is a conformance suite for provider.Provider
// implementations.
package providertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/scopecache/provider"
)

// Options describe what the provider under test supports.
type Options struct {
	// PerEntryTTL is true when Set honors its ttl argument.
	PerEntryTTL bool
}

// Run exercises p. newProvider must return an empty provider each call.
func Run(t *testing.T, newProvider func(t *testing.T) pr.Provider, opts Options) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		p := newProvider(t)
		b, ok, err := p.Get(ctx, "snap:inv:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, b)
	})

	t.Run("set then get is byte transparent", func(t *testing.T) {
		p := newProvider(t)
		payload := []byte{'S', 'Q', 'C', 'S', 0, 1, 0xff, '|', ':'}
		ok, err := p.Set(ctx, "snap:inv:k", payload, 1, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		got, ok, err := p.Get(ctx, "snap:inv:k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, payload, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		p := newProvider(t)
		_, err := p.Set(ctx, "k", []byte("old"), 1, time.Minute)
		require.NoError(t, err)
		_, err = p.Set(ctx, "k", []byte("new"), 1, time.Minute)
		require.NoError(t, err)

		got, ok, err := p.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "new", string(got))
	})

	t.Run("del", func(t *testing.T) {
		p := newProvider(t)
		_, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute)
		require.NoError(t, err)
		require.NoError(t, p.Del(ctx, "k"))
		require.NoError(t, p.Del(ctx, "never-set"))

		_, ok, err := p.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("many keys", func(t *testing.T) {
		p := newProvider(t)
		for i := 0; i < 50; i++ {
			_, err := p.Set(ctx, fmt.Sprintf("k-%d", i), []byte(fmt.Sprint(i)), 1, time.Minute)
			require.NoError(t, err)
		}
		for i := 0; i < 50; i++ {
			got, ok, err := p.Get(ctx, fmt.Sprintf("k-%d", i))
			require.NoError(t, err)
			require.True(t, ok, "key %d", i)
			assert.Equal(t, fmt.Sprint(i), string(got))
		}
	})

	if opts.PerEntryTTL {
		t.Run("ttl expiry", func(t *testing.T) {
			p := newProvider(t)
			_, err := p.Set(ctx, "short", []byte("v"), 1, 50*time.Millisecond)
			require.NoError(t, err)
			assert.Eventually(t, func() bool {
				_, ok, err := p.Get(ctx, "short")
				return err == nil && !ok
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}
