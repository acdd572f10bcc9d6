// Package sentryhooks reports cache failures to Sentry. Only errors are sent;
// routine events (fetch started, invalidated, evicted) are ignored.
package sentryhooks

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/internal/util"
)

type Hooks struct {
	scopecache.NopHooks
	hub *sentry.Hub
	// ReportFetchErrors also sends fetcher failures. They are often expected
	// (offline clients, backend timeouts), so this is off by default.
	ReportFetchErrors bool
}

var _ scopecache.Hooks = (*Hooks)(nil)

// New reports through hub; nil => sentry.CurrentHub().
func New(hub *sentry.Hub) *Hooks {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Hooks{hub: hub}
}

func (h *Hooks) capture(err error, tags map[string]string) {
	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "scopecache")
		scope.SetTags(tags)
		h.hub.CaptureException(err)
	})
}

func (h *Hooks) FetchFailed(k scopecache.Key, err error) {
	if !h.ReportFetchErrors {
		return
	}
	h.capture(err, map[string]string{"tag": k.Tag(), "key": util.Digest(k.String())})
}

func (h *Hooks) PersistError(k scopecache.Key, err error) {
	h.capture(err, map[string]string{"tag": k.Tag(), "key": util.Digest(k.String()), "source": "persist"})
}

func (h *Hooks) GenStoreError(op string, err error) {
	h.capture(err, map[string]string{"source": "genstore", "op": op})
}

// Flush waits for buffered events, e.g. before process exit.
func (h *Hooks) Flush(timeout time.Duration) bool { return h.hub.Flush(timeout) }
