package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/codec"
	gen "github.com/unkn0wn-root/scopecache/genstore"
	"github.com/unkn0wn-root/scopecache/provider"
	bcprov "github.com/unkn0wn-root/scopecache/provider/bigcache"
	gcprov "github.com/unkn0wn-root/scopecache/provider/gocache"
	otprov "github.com/unkn0wn-root/scopecache/provider/otter"
	rdprov "github.com/unkn0wn-root/scopecache/provider/redis"
	riprov "github.com/unkn0wn-root/scopecache/provider/ristretto"
)

// ErrNoRedis is returned when a component needs Redis but no client was given.
var ErrNoRedis = errors.New("config: redis client required")

// NewRedisClient returns a client for RedisConfig, or nil when no address is set.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewGenStore builds the configured generation store. rdb may be nil unless
// GenStore is "redis"; the store does not take ownership of it.
func NewGenStore(cfg CacheConfig, rdb redis.UniversalClient) (gen.GenStore, error) {
	switch cfg.GenStore {
	case "", "local":
		return gen.NewLocalGenStore(cfg.GenTTL/24, cfg.GenTTL), nil
	case "redis":
		if rdb == nil {
			return nil, ErrNoRedis
		}
		s, err := gen.NewRedisGenStore(gen.RedisConfig{
			Client:    rdb,
			Namespace: cfg.GenNamespace,
			TTL:       cfg.GenTTL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown genstore %q", cfg.GenStore)
	}
}

// NewProvider builds the configured snapshot provider. It returns nil, nil
// when persistence is disabled.
func NewProvider(ctx context.Context, cfg SnapshotConfig, redisCfg RedisConfig, rdb redis.UniversalClient) (provider.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ristretto":
		rc := riprov.DefaultConfig(max(cfg.MaxEntries, 1))
		rc.SyncWrites = true
		return wrap(riprov.New(rc))
	case "bigcache":
		return wrap(bcprov.New(ctx, bcprov.Config{
			LifeWindow:         cfg.TTL,
			MaxEntriesInWindow: int(cfg.MaxEntries),
			HardMaxCacheSizeMB: int(cfg.MaxBytes >> 20),
		}))
	case "otter":
		return wrap(otprov.New(otprov.Config{MaxBytes: cfg.MaxBytes, DefaultTTL: cfg.TTL}))
	case "gocache":
		return gcprov.New(gcprov.Config{DefaultTTL: cfg.TTL}), nil
	case "redis":
		if rdb == nil {
			return nil, ErrNoRedis
		}
		return wrap(rdprov.New(rdprov.Config{Client: rdb, Prefix: redisCfg.Prefix, DefaultTTL: cfg.TTL}))
	default:
		return nil, fmt.Errorf("unknown snapshot provider %q", cfg.Provider)
	}
}

// wrap keeps a failed constructor from returning a typed nil provider.
func wrap[P provider.Provider](p P, err error) (provider.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewCodec returns the configured codec for V, bounded by MaxValueBytes.
func NewCodec[V any](cfg SnapshotConfig) (codec.Codec[V], error) {
	var inner codec.Codec[V]
	switch cfg.Codec {
	case "", "json":
		inner = codec.JSON[V]{}
	case "cbor":
		c, err := codec.NewCBOR[V](codec.CBOROptions{Deterministic: true})
		if err != nil {
			return nil, err
		}
		inner = c
	case "msgpack":
		inner = codec.Msgpack[V]{JSONTags: true}
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", cfg.Codec)
	}
	if cfg.MaxValueBytes <= 0 {
		return inner, nil
	}
	return codec.Limit[V]{Inner: inner, MaxEncode: cfg.MaxValueBytes, MaxDecode: cfg.MaxValueBytes}, nil
}

// NewStore builds a persister for values of type V on p.
func NewStore[V any](cfg SnapshotConfig, p provider.Provider) (*scopecache.Store[V], error) {
	c, err := NewCodec[V](cfg)
	if err != nil {
		return nil, err
	}
	return scopecache.NewStore(scopecache.StoreOptions[V]{
		Namespace: cfg.Namespace,
		Provider:  p,
		Codec:     c,
		TTL:       cfg.TTL,
	})
}
