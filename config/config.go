// Package config loads the application configuration of a scopecache
// deployment from SCOPECACHE_* environment variables and an optional YAML
// policy file, and builds the cache collaborators it describes.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/inventory/pgbackend"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "SCOPECACHE_"

type Config struct {
	// Backend selects the data source: "memory" (default) or "postgres".
	Backend string `env:"BACKEND, default=memory"`
	// PolicyFile is a YAML file with per-tag query policies.
	PolicyFile string `env:"POLICY_FILE"`

	Cache    CacheConfig
	Snapshot SnapshotConfig
	Redis    RedisConfig
	Database pgbackend.Config
	Observe  ObserveConfig

	// Policies is read from PolicyFile by Load.
	Policies map[string]scopecache.QueryOptions
}

type CacheConfig struct {
	DefaultTTL      time.Duration `env:"DEFAULT_TTL, default=5m"`
	GCTime          time.Duration `env:"GC_TIME, default=5m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL, default=1m"`

	// GenStore is "local" (default) or "redis". Redis shares invalidations
	// between replicas.
	GenStore     string        `env:"GENSTORE, default=local"`
	GenNamespace string        `env:"GENSTORE_NAMESPACE, default=inventory"`
	GenTTL       time.Duration `env:"GENSTORE_TTL, default=720h"`
}

// SnapshotConfig describes where query results are persisted. An empty
// Provider disables persistence.
type SnapshotConfig struct {
	// Provider is one of "ristretto", "bigcache", "otter", "gocache", "redis".
	Provider   string        `env:"SNAPSHOT_PROVIDER"`
	Codec      string        `env:"SNAPSHOT_CODEC, default=json"` // json, cbor, msgpack
	Namespace  string        `env:"SNAPSHOT_NAMESPACE, default=inventory"`
	TTL        time.Duration `env:"SNAPSHOT_TTL, default=24h"`
	MaxEntries int64         `env:"SNAPSHOT_MAX_ENTRIES, default=10000"`
	MaxBytes   uint64        `env:"SNAPSHOT_MAX_BYTES, default=67108864"`

	// MaxValueBytes rejects larger encoded values; 0 disables the check.
	MaxValueBytes int      `env:"SNAPSHOT_MAX_VALUE_BYTES, default=1048576"`
	Tags          []string `env:"SNAPSHOT_TAGS, default=branches"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
	Prefix   string `env:"REDIS_PREFIX, default=scopecache:"`
}

type ObserveConfig struct {
	// SentryDSN enables error reporting to Sentry.
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT, default=development"`

	// SentryFetchErrors also reports fetcher failures.
	SentryFetchErrors bool `env:"SENTRY_FETCH_ERRORS, default=false"`
}

var (
	backends  = []string{"memory", "postgres"}
	genStores = []string{"local", "redis"}
	providers = []string{"", "ristretto", "bigcache", "otter", "gocache", "redis"}
	codecs    = []string{"json", "cbor", "msgpack"}
)

// Load reads the configuration from the OS environment.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookup),
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.PolicyFile != "" {
		cfg.Policies, err = LoadPolicies(cfg.PolicyFile)
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Validate checks the enumerations and the settings they require.
func (c *Config) Validate() error {
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == "postgres" && c.Database.ConnectionString == "" {
		return fmt.Errorf("%sDATABASE_URL required for the postgres backend", EnvPrefix)
	}
	if !slices.Contains(genStores, c.Cache.GenStore) {
		return fmt.Errorf("unknown genstore %q", c.Cache.GenStore)
	}
	if !slices.Contains(providers, c.Snapshot.Provider) {
		return fmt.Errorf("unknown snapshot provider %q", c.Snapshot.Provider)
	}
	if !slices.Contains(codecs, c.Snapshot.Codec) {
		return fmt.Errorf("unknown snapshot codec %q", c.Snapshot.Codec)
	}
	if c.needsRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("%sREDIS_ADDR required by the redis genstore or snapshot provider", EnvPrefix)
	}
	return nil
}

func (c *Config) needsRedis() bool {
	return c.Cache.GenStore == "redis" || c.Snapshot.Provider == "redis"
}

// CacheOptions converts the configuration into scopecache.Options. The
// caller adds the logger, hooks, GenStore and persisters.
func (c *Config) CacheOptions() scopecache.Options {
	policies := make(map[string]scopecache.QueryOptions, len(c.Policies))
	for tag, p := range c.Policies {
		policies[tag] = p
	}
	return scopecache.Options{
		DefaultTTL:      c.Cache.DefaultTTL,
		GCTime:          c.Cache.GCTime,
		CleanupInterval: c.Cache.CleanupInterval,
		Policies:        policies,
	}
}
