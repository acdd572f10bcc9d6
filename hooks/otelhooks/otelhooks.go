// Package otelhooks records cache events as OpenTelemetry metrics.
//
//	scopecache.fetches{tag, outcome, mode}     counter
//	scopecache.fetch.duration{tag}             histogram, seconds
//	scopecache.invalidations{tag, mode}        counter
//	scopecache.evictions{tag}                  counter
//	scopecache.snapshot.discards{tag, reason}  counter
//	scopecache.errors{source}                  counter (persist, genstore)
package otelhooks

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/scopecache"
)

const instrumentationName = "github.com/unkn0wn-root/scopecache/hooks/otelhooks"

type Hooks struct {
	fetches       metric.Int64Counter
	fetchDuration metric.Float64Histogram
	invalidations metric.Int64Counter
	evictions     metric.Int64Counter
	discards      metric.Int64Counter
	errs          metric.Int64Counter
}

var _ scopecache.Hooks = (*Hooks)(nil)

// New creates the instruments on mp; nil => the global MeterProvider.
func New(mp metric.MeterProvider) (*Hooks, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var (
		h    Hooks
		err  error
		errs []error
	)
	h.fetches, err = meter.Int64Counter("scopecache.fetches",
		metric.WithDescription("Query fetches by outcome"))
	errs = append(errs, err)
	h.fetchDuration, err = meter.Float64Histogram("scopecache.fetch.duration",
		metric.WithDescription("Duration of successful fetches"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	h.invalidations, err = meter.Int64Counter("scopecache.invalidations",
		metric.WithDescription("Entries marked stale by invalidation"))
	errs = append(errs, err)
	h.evictions, err = meter.Int64Counter("scopecache.evictions",
		metric.WithDescription("Idle entries garbage collected"))
	errs = append(errs, err)
	h.discards, err = meter.Int64Counter("scopecache.snapshot.discards",
		metric.WithDescription("Persisted snapshots dropped on load"))
	errs = append(errs, err)
	h.errs, err = meter.Int64Counter("scopecache.errors",
		metric.WithDescription("Persister and GenStore failures"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &h, nil
}

func mode(background bool) string {
	if background {
		return "background"
	}
	return "foreground"
}

func (h *Hooks) FetchStarted(k scopecache.Key, background bool) {
	h.fetches.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tag", k.Tag()),
		attribute.String("outcome", "started"),
		attribute.String("mode", mode(background))))
}

func (h *Hooks) FetchSucceeded(k scopecache.Key, took time.Duration) {
	ctx := context.Background()
	tag := attribute.String("tag", k.Tag())
	h.fetches.Add(ctx, 1, metric.WithAttributes(tag, attribute.String("outcome", "success")))
	h.fetchDuration.Record(ctx, took.Seconds(), metric.WithAttributes(tag))
}

func (h *Hooks) FetchFailed(k scopecache.Key, _ error) {
	h.fetches.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tag", k.Tag()),
		attribute.String("outcome", "error")))
}

func (h *Hooks) Invalidated(k scopecache.Key, eager bool) {
	m := "lazy"
	if eager {
		m = "eager"
	}
	h.invalidations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tag", k.Tag()),
		attribute.String("mode", m)))
}

func (h *Hooks) Evicted(k scopecache.Key) {
	h.evictions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tag", k.Tag())))
}

func (h *Hooks) SnapshotDiscarded(k scopecache.Key, reason string) {
	h.discards.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tag", k.Tag()),
		attribute.String("reason", reason)))
}

func (h *Hooks) PersistError(scopecache.Key, error) {
	h.errs.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", "persist")))
}

func (h *Hooks) GenStoreError(op string, _ error) {
	h.errs.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("source", "genstore"),
		attribute.String("op", op)))
}
