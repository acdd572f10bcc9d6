package pgbackend

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/inventory"
)

// ChangeChannel is the NOTIFY channel the row triggers of the schema publish to.
const ChangeChannel = "scopecache_changes"

// Change is one row change published by the database.
type Change struct {
	Table    string `json:"table"`
	Op       string `json:"op"` // insert, update, delete
	UserID   string `json:"user_id"`
	BranchID string `json:"branch_id"`
}

// Tags returns the tags of the cached queries a change of c.Table affects.
func (c Change) Tags() []string {
	switch c.Table {
	case "profiles":
		return []string{inventory.TagOnboardingStatus}
	case "branches":
		return []string{inventory.TagBranches}
	case "products":
		return []string{
			inventory.TagProducts,
			inventory.TagProductCount,
			inventory.TagOnboardingProductCount,
			inventory.TagDashboardData,
		}
	case "stock_transactions":
		return []string{
			inventory.TagStockTransactions,
			inventory.TagProducts,
			inventory.TagDashboardData,
		}
	}
	return nil
}

// Trigger is the invalidation a change stands for: the affected tags of the
// changed user, narrowed to the changed branch.
func (c Change) Trigger() scopecache.Trigger {
	return scopecache.Trigger{
		Name:  "db-change:" + c.Table,
		Match: inventory.MatchScope(c.UserID, c.BranchID, c.Tags()...),
	}
}

// Invalidator returns a handler for Listener.Run that fires the trigger of
// every change made to user's rows on cache. Changes of other users are
// ignored.
func Invalidator(cache *scopecache.Cache, user string) func(context.Context, Change) {
	return func(ctx context.Context, ch Change) {
		if ch.UserID != user || len(ch.Tags()) == 0 {
			return
		}
		cache.Fire(ctx, ch.Trigger())
	}
}

// Listener turns database change notifications into handler calls. It holds
// one connection taken out of the pool for as long as Run runs.
type Listener struct {
	pool  *pgxpool.Pool
	log   scopecache.Logger
	retry time.Duration
}

// NewListener creates a Listener. Lost connections are re-established after
// retry (Config.RetryInterval is a good default).
func NewListener(pool *pgxpool.Pool, log scopecache.Logger, retry time.Duration) *Listener {
	if log == nil {
		log = scopecache.NopLogger{}
	}
	if retry <= 0 {
		retry = 2 * time.Second
	}
	return &Listener{pool: pool, log: log, retry: retry}
}

// Run listens on ChangeChannel and calls handle for each change until ctx
// ends. It returns ctx.Err().
func (l *Listener) Run(ctx context.Context, handle func(context.Context, Change)) error {
	for {
		err := l.listen(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn("change listener disconnected", scopecache.Fields{"err": err, "retry": l.retry.String()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Listener) listen(ctx context.Context, handle func(context.Context, Change)) error {
	pc, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// a LISTENing connection must not go back to the pool
	conn := pc.Hijack()
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return err
	}
	l.log.Info("listening for changes", scopecache.Fields{"channel": ChangeChannel})

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ch, err := ParseChange(n.Payload)
		if err != nil {
			l.log.Warn("malformed change notification", scopecache.Fields{"payload": n.Payload, "err": err})
			continue
		}
		handle(ctx, ch)
	}
}

var errNoUser = errors.New("change without user_id")

// ParseChange decodes a notification payload.
func ParseChange(payload string) (Change, error) {
	var ch Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return Change{}, err
	}
	if ch.UserID == "" {
		return Change{}, errNoUser
	}
	return ch, nil
}
