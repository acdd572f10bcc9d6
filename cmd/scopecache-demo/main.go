// Command scopecache-demo runs the inventory onboarding flow against a
// session cache and logs every cache transition.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/config"
	asynchook "github.com/unkn0wn-root/scopecache/hooks/async"
	"github.com/unkn0wn-root/scopecache/hooks/otelhooks"
	"github.com/unkn0wn-root/scopecache/hooks/sentryhooks"
	"github.com/unkn0wn-root/scopecache/inventory"
	"github.com/unkn0wn-root/scopecache/inventory/pgbackend"
	logruslog "github.com/unkn0wn-root/scopecache/log/logrus"
	"github.com/unkn0wn-root/scopecache/provider"
	"github.com/unkn0wn-root/scopecache/sloghooks"
	"github.com/unkn0wn-root/scopecache/triggers"
)

func main() {
	user := pflag.StringP("user", "u", "demo-user", "user id of the session")
	policy := pflag.StringP("policy", "p", "", "YAML policy file; overrides SCOPECACHE_POLICY_FILE")
	interval := pflag.StringP("refetch", "r", "@every 30s", "schedule of the periodic refetch trigger, empty disables")
	wait := pflag.BoolP("wait", "w", false, "keep running until interrupted")
	jsonLogs := pflag.BoolP("json", "j", false, "log as JSON")
	verbose := pflag.BoolP("verbose", "v", false, "verbose output")
	pflag.Parse()

	if *jsonLogs {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *user, *policy, *interval, *wait); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, user, policyFile, interval string, wait bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if policyFile != "" {
		if cfg.Policies, err = config.LoadPolicies(policyFile); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	gens, err := config.NewGenStore(cfg.Cache, rdb)
	if err != nil {
		return err
	}

	hooks, closeHooks, err := newHooks(cfg.Observe)
	if err != nil {
		return err
	}
	defer closeHooks()

	opts := cfg.CacheOptions()
	opts.Logger = logruslog.New(log.StandardLogger())
	opts.Hooks = hooks
	opts.GenStore = gens

	cache, err := scopecache.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.Close(cctx); err != nil {
			log.WithError(err).Warn("cache close")
		}
	}()

	snapshots, err := config.NewProvider(ctx, cfg.Snapshot, cfg.Redis, rdb)
	if err != nil {
		return err
	}
	if snapshots != nil {
		defer snapshots.Close(context.Background())
		if err := persist(cache, cfg.Snapshot, snapshots); err != nil {
			return err
		}
	}

	backend, closeBackend, err := newBackend(ctx, cfg, cache, user)
	if err != nil {
		return err
	}
	defer closeBackend()

	session, err := inventory.NewSession(user, cache, backend, inventory.SessionOptions{Logger: opts.Logger})
	if err != nil {
		return err
	}
	defer session.SignOut(context.Background())

	if interval != "" {
		sched := triggers.New(cache, triggers.Options{Logger: opts.Logger})
		if err := sched.Add(interval, session.Trigger("refetch-interval")); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop(context.Background())
	}

	if err := script(ctx, session); err != nil {
		return err
	}
	if wait {
		log.Info("running, press ctrl-c to exit")
		<-ctx.Done()
	}
	return nil
}

// newHooks logs cache events off the hot path, records OpenTelemetry metrics
// on the global meter provider and, with a DSN, reports failures to Sentry.
func newHooks(cfg config.ObserveConfig) (scopecache.Hooks, func(), error) {
	logged := asynchook.New(sloghooks.New(slog.Default(), sloghooks.Options{FetchEvery: 1}), 1, 256)
	metrics, err := otelhooks.New(otel.GetMeterProvider())
	if err != nil {
		logged.Close()
		return nil, nil, err
	}
	hooks := scopecache.MultiHooks{logged, metrics}
	closeAll := logged.Close

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.SentryEnvironment}); err != nil {
			logged.Close()
			return nil, nil, err
		}
		reporter := sentryhooks.New(nil)
		reporter.ReportFetchErrors = cfg.SentryFetchErrors
		hooks = append(hooks, reporter)
		closeAll = func() {
			logged.Close()
			reporter.Flush(2 * time.Second)
		}
	}
	return hooks, closeAll, nil
}

// newBackend picks the data source. With postgres, row changes made by other
// clients invalidate the user's cached queries.
func newBackend(ctx context.Context, cfg config.Config, cache *scopecache.Cache, user string) (inventory.Backend, func(), error) {
	if cfg.Backend == "postgres" {
		logger := logruslog.New(log.StandardLogger())
		pool, err := pgbackend.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := pgbackend.Migrate(ctx, pool, cfg.Database.MigrationsTable, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}

		lctx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = pgbackend.NewListener(pool, logger, cfg.Database.RetryInterval).Run(lctx, pgbackend.Invalidator(cache, user))
		}()
		return pgbackend.New(pool), func() {
			stop()
			<-done
			pool.Close()
		}, nil
	}

	mem := inventory.NewMemoryBackend()
	mem.SetOnboarding(user, inventory.OnboardingInProgress)
	return mem, func() {}, nil
}

// persist registers a snapshot store for every configured tag.
func persist(cache *scopecache.Cache, cfg config.SnapshotConfig, p provider.Provider) error {
	for _, tag := range cfg.Tags {
		var (
			store scopecache.Persister
			err   error
		)
		switch tag {
		case inventory.TagBranches:
			store, err = config.NewStore[[]inventory.Branch](cfg, p)
		case inventory.TagOnboardingStatus:
			store, err = config.NewStore[inventory.Onboarding](cfg, p)
		case inventory.TagProductCount, inventory.TagOnboardingProductCount:
			store, err = config.NewStore[int](cfg, p)
		case inventory.TagProducts:
			store, err = config.NewStore[[]inventory.Product](cfg, p)
		case inventory.TagStockTransactions:
			store, err = config.NewStore[[]inventory.StockTransaction](cfg, p)
		case inventory.TagDashboardData:
			store, err = config.NewStore[inventory.Dashboard](cfg, p)
		default:
			return fmt.Errorf("no snapshot type for tag %q", tag)
		}
		if err != nil {
			return err
		}
		cache.Persist(tag, store)
	}
	return nil
}

func script(ctx context.Context, s *inventory.Session) error {
	needs, err := s.NeedsOnboarding(ctx)
	if err != nil {
		return err
	}

	if needs {
		if _, err := s.CompleteOnboarding(ctx, inventory.OnboardingInput{
			BranchName: "Main store",
			Product:    inventory.NewProduct{Name: "Espresso beans 1kg", SKU: "ESP-1000", Quantity: 12, MinStockLevel: 4},
		}); err != nil && !errors.Is(err, inventory.ErrOnboardingState) {
			return err
		}
	}

	branch, err := s.ActiveBranch(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"branch": branch.Name, "main": branch.IsMain}).Info("active branch")

	stopWatch, err := s.WatchProductCount(ctx, func(r scopecache.Result[int]) {
		log.WithFields(log.Fields{"state": r.State.String(), "count": r.Value, "has_value": r.HasValue}).Info("product count")
	})
	if err != nil {
		return err
	}
	defer stopWatch()

	p, err := s.CreateProduct(ctx, inventory.NewProduct{Name: "Oat milk 1l", SKU: "OAT-1", Quantity: 6, MinStockLevel: 6})
	if err != nil {
		return err
	}
	if _, err := s.AdjustStock(ctx, p.ID, -2, "sold"); err != nil {
		return err
	}

	s.WindowFocused(ctx)

	d, err := s.Dashboard(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"state":    d.State.String(),
		"products": d.Value.ProductCount,
		"units":    d.Value.TotalUnits,
		"low":      d.Value.LowStock,
	}).Info("dashboard")
	return nil
}
