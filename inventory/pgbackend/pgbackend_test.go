package pgbackend

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/inventory"
)

func TestConnect_InvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), Config{ConnectionString: "postgres://localhost:notaport/db"})
	require.ErrorIs(t, err, ErrFailedToParseDBConfig)
}

func TestConnect_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Connect(ctx, Config{
		ConnectionString: "postgres://u:p@127.0.0.1:1/db?connect_timeout=1",
		RetryAttempts:    3,
		RetryInterval:    time.Minute,
	})
	require.ErrorIs(t, err, ErrFailedToOpenDBConnection)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_inventory.sql", entries[0].Name())
	assert.Equal(t, "00002_change_notify.sql", entries[1].Name())

	raw, err := fs.ReadFile(migrations, "migrations/00002_change_notify.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pg_notify('"+ChangeChannel+"'")
}

func TestParseChange(t *testing.T) {
	ch, err := ParseChange(`{"table":"products","op":"insert","user_id":"u1","branch_id":"b1"}`)
	require.NoError(t, err)
	assert.Equal(t, Change{Table: "products", Op: "insert", UserID: "u1", BranchID: "b1"}, ch)

	_, err = ParseChange(`{"table":"products"}`)
	require.Error(t, err)
	_, err = ParseChange(`not json`)
	require.Error(t, err)
}

func TestChange_Tags(t *testing.T) {
	assert.Equal(t, []string{inventory.TagOnboardingStatus}, Change{Table: "profiles"}.Tags())
	assert.Equal(t, []string{inventory.TagBranches}, Change{Table: "branches"}.Tags())
	assert.Contains(t, Change{Table: "products"}.Tags(), inventory.TagOnboardingProductCount)
	assert.Contains(t, Change{Table: "stock_transactions"}.Tags(), inventory.TagDashboardData)
	assert.Empty(t, Change{Table: "audit_log"}.Tags())
}

func TestInvalidator_ScopesToUserAndBranch(t *testing.T) {
	ctx := context.Background()
	c, err := scopecache.New(scopecache.Options{GCTime: -1})
	require.NoError(t, err)
	defer c.Close(ctx)

	one := func(context.Context) (any, error) { return 1, nil }
	mine := inventory.ProductsKey("u1", "b1")
	otherBranch := inventory.ProductsKey("u1", "b2")
	otherUser := inventory.ProductsKey("u2", "b1")
	onboarding := inventory.OnboardingProductCountKey("u1")
	for _, k := range []scopecache.Key{mine, otherBranch, otherUser, onboarding} {
		_, err := c.Query(ctx, k, one, scopecache.QueryOptions{})
		require.NoError(t, err)
	}

	apply := Invalidator(c, "u1")
	apply(ctx, Change{Table: "products", Op: "update", UserID: "u1", BranchID: "b1"})
	apply(ctx, Change{Table: "products", Op: "update", UserID: "u2", BranchID: "b1"})

	state := func(k scopecache.Key) scopecache.State {
		s, ok := c.Peek(k)
		require.True(t, ok)
		return s.State
	}
	assert.Equal(t, scopecache.Stale, state(mine))
	assert.Equal(t, scopecache.Stale, state(onboarding))
	assert.Equal(t, scopecache.Fresh, state(otherBranch))
	assert.Equal(t, scopecache.Fresh, state(otherUser))
}

type recordLogger struct {
	scopecache.NopLogger
	infos, errors []string
}

func (r *recordLogger) Info(msg string, _ scopecache.Fields)  { r.infos = append(r.infos, msg) }
func (r *recordLogger) Error(msg string, _ scopecache.Fields) { r.errors = append(r.errors, msg) }

func TestGooseLogger(t *testing.T) {
	rec := &recordLogger{}
	g := &gooseLogger{rec}
	g.Printf("applied %d", 1)
	g.Fatalf("failed: %s", "boom")
	assert.Equal(t, []string{"applied 1"}, rec.infos)
	assert.Equal(t, []string{"failed: boom"}, rec.errors)
}
