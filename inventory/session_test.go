package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/scopecache"
)

const waitTimeout = 2 * time.Second

func newCache(t *testing.T) *scopecache.Cache {
	t.Helper()
	c, err := scopecache.New(scopecache.Options{GCTime: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func newSession(t *testing.T, user string, be Backend) *Session {
	t.Helper()
	s, err := NewSession(user, newCache(t), be, SessionOptions{})
	require.NoError(t, err)
	return s
}

func seededBackend(t *testing.T, user string) (*MemoryBackend, Branch) {
	t.Helper()
	be := NewMemoryBackend()
	br, err := be.CreateBranch(context.Background(), user, "Main")
	require.NoError(t, err)
	return be, br
}

type counts struct {
	mu   sync.Mutex
	seen []int
}

func (c *counts) add(r scopecache.Result[int]) {
	if r.State != scopecache.Fresh {
		return
	}
	c.mu.Lock()
	c.seen = append(c.seen, r.Value)
	c.mu.Unlock()
}

func (c *counts) values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.seen...)
}

func TestNeedsOnboarding(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"", true},
		{OnboardingInProgress, true},
		{"something-else", true},
		{OnboardingDone, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsOnboarding(tt.status))
			assert.Equal(t, tt.want, Onboarding{Status: tt.status}.Needs())
		})
	}
}

func TestNewSession_Validates(t *testing.T) {
	c := newCache(t)
	_, err := NewSession("", c, NewMemoryBackend(), SessionOptions{})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewSession("u1", nil, NewMemoryBackend(), SessionOptions{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBranchScopedReadWithoutBranch(t *testing.T) {
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)

	_, err := s.ProductCount(context.Background())
	var ike *scopecache.InvalidKeyError
	require.ErrorAs(t, err, &ike)
	assert.Equal(t, 1, ike.Index)
	assert.Zero(t, be.Calls(OpCountProducts))

	_, err = s.WatchProductCount(context.Background(), func(scopecache.Result[int]) {})
	require.ErrorAs(t, err, &ike)
}

func TestActiveBranch_DefaultsToMain(t *testing.T) {
	be, main := seededBackend(t, "u1")
	_, err := be.CreateBranch(context.Background(), "u1", "Warehouse")
	require.NoError(t, err)
	s := newSession(t, "u1", be)

	got, err := s.ActiveBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, main.ID, got.ID)
	assert.True(t, got.IsMain)
	assert.Equal(t, main.ID, s.ActiveBranchID())
}

func TestActiveBranch_NoBranches(t *testing.T) {
	s := newSession(t, "u1", NewMemoryBackend())
	_, err := s.ActiveBranch(context.Background())
	require.ErrorIs(t, err, ErrNoBranches)
}

func TestSelectBranch(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	other, err := be.CreateBranch(ctx, "u1", "Shop")
	require.NoError(t, err)
	foreign, err := be.CreateBranch(ctx, "u2", "Elsewhere")
	require.NoError(t, err)
	s := newSession(t, "u1", be)

	got, err := s.SelectBranch(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Name)
	assert.Equal(t, other.ID, s.ActiveBranchID())

	_, err = s.SelectBranch(ctx, foreign.ID)
	require.ErrorIs(t, err, ErrUnknownBranch)
	assert.Equal(t, other.ID, s.ActiveBranchID())
}

// A dashboard watching the product count sees 0 before onboarding and 1 after
// it, without re-reading.
func TestCompleteOnboarding_WatcherSeesNewCount(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.ActiveBranch(ctx)
	require.NoError(t, err)

	var seen counts
	stop, err := s.WatchProductCount(ctx, seen.add)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		v := seen.values()
		return len(v) == 1 && v[0] == 0
	}, waitTimeout, 5*time.Millisecond)

	p, err := s.CompleteOnboarding(ctx, OnboardingInput{Product: NewProduct{Name: "Widget", SKU: "W-1", Quantity: 5}})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	require.Eventually(t, func() bool {
		v := seen.values()
		return len(v) == 2 && v[1] == 1
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []int{0, 1}, seen.values())
	assert.Equal(t, 2, be.Calls(OpCountProducts))

	require.Eventually(t, func() bool {
		needs, err := s.NeedsOnboarding(ctx)
		return err == nil && !needs
	}, waitTimeout, 5*time.Millisecond)

	txs, err := be.ListStockTransactions(ctx, "u1", s.ActiveBranchID(), 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ReasonInitialStock, txs[0].Reason)
	assert.Equal(t, 5, txs[0].Delta)
}

func TestCompleteOnboarding_CreatesFirstBranch(t *testing.T) {
	ctx := context.Background()
	be := NewMemoryBackend()
	s := newSession(t, "u1", be)

	p, err := s.CompleteOnboarding(ctx, OnboardingInput{BranchName: "HQ", Product: NewProduct{Name: "Bolt"}})
	require.NoError(t, err)
	assert.Equal(t, p.BranchID, s.ActiveBranchID())

	branches, err := be.ListBranches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].IsMain)
	assert.Equal(t, "HQ", branches[0].Name)
}

func TestCompleteOnboarding_StatusFailureStillInvalidates(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.ActiveBranch(ctx)
	require.NoError(t, err)

	res, err := s.OnboardingProductCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Value)

	boom := errors.New("profiles unavailable")
	be.SetHook(func(_ context.Context, op, _ string) error {
		if op == OpMarkOnboardingDone {
			return boom
		}
		return nil
	})

	p, err := s.CompleteOnboarding(ctx, OnboardingInput{Product: NewProduct{Name: "Widget"}})
	require.ErrorIs(t, err, ErrOnboardingState)
	require.ErrorIs(t, err, boom)
	assert.NotEmpty(t, p.ID)

	snap, ok := s.cache.Peek(OnboardingProductCountKey("u1"))
	require.True(t, ok)
	assert.Equal(t, scopecache.Stale, snap.State)
}

func TestCompleteOnboarding_InvalidProduct(t *testing.T) {
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.CompleteOnboarding(context.Background(), OnboardingInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, be.Calls(OpCreateProduct))
}

// Two consumers mounting at the same time share one backend call.
func TestBranches_ConcurrentReadsFetchOnce(t *testing.T) {
	ctx := context.Background()
	be, br := seededBackend(t, "u1")
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	be.SetHook(func(ctx context.Context, op, _ string) error {
		if op != OpListBranches {
			return nil
		}
		started <- struct{}{}
		<-release
		return nil
	})
	s := newSession(t, "u1", be)

	var wg sync.WaitGroup
	results := make([][]Branch, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Branches(ctx)
			results[i], errs[i] = res.Value, err
		}()
	}

	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("fetch did not start")
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, be.Calls(OpListBranches))
	for i := range 2 {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, br.ID, results[i][0].ID)
	}
}

func TestAdjustStock_InvalidatesDependents(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.ActiveBranch(ctx)
	require.NoError(t, err)

	p, err := s.CreateProduct(ctx, NewProduct{Name: "Nut", Quantity: 3, MinStockLevel: 2})
	require.NoError(t, err)

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, Dashboard{
		ProductCount:       1,
		TotalUnits:         3,
		RecentTransactions: d.Value.RecentTransactions,
	}, d.Value)
	require.Len(t, d.Value.RecentTransactions, 1)

	_, err = s.AdjustStock(ctx, p.ID, -2, "sold")
	require.NoError(t, err)

	for _, k := range []scopecache.Key{
		ProductsKey("u1", p.BranchID),
		DashboardKey("u1", p.BranchID),
	} {
		snap, ok := s.cache.Peek(k)
		if ok && snap.HasValue {
			assert.NotEqual(t, scopecache.Fresh, snap.State, k.String())
		}
	}

	require.Eventually(t, func() bool {
		d, err := s.Dashboard(ctx)
		return err == nil && d.State == scopecache.Fresh && d.Value.TotalUnits == 1
	}, waitTimeout, 5*time.Millisecond)

	d, err = s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Value.LowStock)
	require.Len(t, d.Value.RecentTransactions, 2)
	assert.Equal(t, "sold", d.Value.RecentTransactions[0].Reason)

	_, err = s.AdjustStock(ctx, p.ID, -5, "oversold")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestWriteWithoutBranch(t *testing.T) {
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.CreateProduct(context.Background(), NewProduct{Name: "x"})
	require.ErrorIs(t, err, ErrUnknownBranch)
	_, err = s.AdjustStock(context.Background(), "p", 1, "")
	require.ErrorIs(t, err, ErrUnknownBranch)
}

func TestCreateBranch_InvalidatesBranches(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)

	res, err := s.Branches(ctx)
	require.NoError(t, err)
	require.Len(t, res.Value, 1)

	_, err = s.CreateBranch(ctx, "Second")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := s.Branches(ctx)
		return err == nil && res.State == scopecache.Fresh && len(res.Value) == 2
	}, waitTimeout, 5*time.Millisecond)
}

func TestWindowFocused_OnlyTouchesOwnKeys(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	_, err := be.CreateBranch(ctx, "u2", "Other")
	require.NoError(t, err)

	c := newCache(t)
	s1, err := NewSession("u1", c, be, SessionOptions{})
	require.NoError(t, err)
	s2, err := NewSession("u2", c, be, SessionOptions{})
	require.NoError(t, err)

	_, err = s1.Branches(ctx)
	require.NoError(t, err)
	_, err = s1.Onboarding(ctx)
	require.NoError(t, err)
	_, err = s2.Branches(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, s1.WindowFocused(ctx))

	snap, ok := c.Peek(BranchesKey("u1"))
	require.True(t, ok)
	assert.Equal(t, scopecache.Stale, snap.State)
	snap, ok = c.Peek(BranchesKey("u2"))
	require.True(t, ok)
	assert.Equal(t, scopecache.Fresh, snap.State)

	assert.Equal(t, 1, s2.Reconnected(ctx))
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	_, err := s.ActiveBranch(ctx)
	require.NoError(t, err)

	var calls atomic.Int32
	_, err = s.WatchProductCount(ctx, func(scopecache.Result[int]) { calls.Add(1) })
	require.NoError(t, err)
	// fetching, fresh
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitTimeout, 5*time.Millisecond)

	s.SignOut(ctx)
	assert.Empty(t, s.ActiveBranchID())
	assert.Zero(t, s.cache.Len())

	before := calls.Load()
	s.cache.InvalidateTags(ctx, TagProductCount)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())

	// the cache serves the next session
	res, err := s.Branches(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Value, 1)
	assert.Equal(t, 2, be.Calls(OpListBranches))
}

func TestWatchProductCount_StopUnsubscribes(t *testing.T) {
	ctx := context.Background()
	be, _ := seededBackend(t, "u1")
	s := newSession(t, "u1", be)
	br, err := s.ActiveBranch(ctx)
	require.NoError(t, err)

	stop, err := s.WatchProductCount(ctx, func(scopecache.Result[int]) {})
	require.NoError(t, err)
	snap, ok := s.cache.Peek(ProductCountKey("u1", br.ID))
	require.True(t, ok)
	assert.Equal(t, 1, snap.Subscribers)

	stop()
	stop()
	snap, _ = s.cache.Peek(ProductCountKey("u1", br.ID))
	assert.Zero(t, snap.Subscribers)

	// unsubscribed: invalidation no longer refetches eagerly
	s.cache.InvalidateTags(ctx, TagProductCount)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, be.Calls(OpCountProducts))
}
