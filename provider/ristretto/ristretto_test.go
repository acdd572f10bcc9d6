package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/scopecache/provider"
	"github.com/unkn0wn-root/scopecache/provider/providertest"
)

func TestConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T) pr.Provider {
		cfg := DefaultConfig(1000)
		cfg.SyncWrites = true
		p, err := New(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		return p
	}, providertest.Options{PerEntryTTL: true})
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
