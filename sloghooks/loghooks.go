// Package sloghooks logs cache events with log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FetchEvery      uint64
	InvalidateEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix, since scope values
	// carry user and branch ids.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fetchCtr      atomic.Uint64
	invalidateCtr atomic.Uint64
}

var _ scopecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k scopecache.Key) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k.String())
	}
	return util.Digest(k.String())
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(k scopecache.Key, background bool) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("scopecache.fetch_started",
		"tag", k.Tag(),
		"key", h.redact(k),
		"background", background)
}

func (h *Hooks) FetchSucceeded(k scopecache.Key, took time.Duration) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("scopecache.fetch_succeeded",
		"tag", k.Tag(),
		"key", h.redact(k),
		"took", took)
}

func (h *Hooks) FetchFailed(k scopecache.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("scopecache.fetch_failed",
		"tag", k.Tag(),
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) Invalidated(k scopecache.Key, eager bool) {
	if h.l == nil || !sample(h.opts.InvalidateEvery, &h.invalidateCtr) {
		return
	}
	h.l.Debug("scopecache.invalidated",
		"tag", k.Tag(),
		"key", h.redact(k),
		"eager", eager)
}

func (h *Hooks) Evicted(k scopecache.Key) {
	if h.l == nil {
		return
	}
	h.l.Debug("scopecache.evicted",
		"tag", k.Tag(),
		"key", h.redact(k))
}

func (h *Hooks) SnapshotDiscarded(k scopecache.Key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("scopecache.snapshot_discarded",
		"tag", k.Tag(),
		"key", h.redact(k),
		"reason", reason)
}

func (h *Hooks) PersistError(k scopecache.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("scopecache.persist_error",
		"tag", k.Tag(),
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) GenStoreError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("scopecache.genstore_error",
		"op", op,
		"err", err)
}
