package inventory

import (
	"context"
	"errors"
	"sync"

	"github.com/unkn0wn-root/scopecache"
)

// Trigger names.
const (
	TriggerWindowFocus = "window-focus"
	TriggerReconnect   = "reconnect"
)

// SessionOptions configure a Session. All fields are optional.
type SessionOptions struct {
	Logger scopecache.Logger // nil => the no-op logger
	// RecentTransactions is how many transactions StockTransactions and the
	// dashboard show. 0 => 20.
	RecentTransactions int
}

// Session is the data layer of one signed-in user. It owns the active branch
// and reads through the cache it was given; every write invalidates the tags
// whose queries it changes.
//
// Branch-scoped reads use the active branch as it is when they are called.
// Without an active branch they fail with *scopecache.InvalidKeyError; call
// ActiveBranch or SelectBranch first.
type Session struct {
	user    string
	cache   *scopecache.Cache
	backend Backend
	log     scopecache.Logger
	recent  int

	mu      sync.Mutex
	branch  string
	watches map[uint64]func()
	nextW   uint64
}

func NewSession(user string, cache *scopecache.Cache, backend Backend, opts SessionOptions) (*Session, error) {
	if user == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	if cache == nil || backend == nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("cache and backend are required"))
	}
	s := &Session{
		user:    user,
		cache:   cache,
		backend: backend,
		log:     opts.Logger,
		recent:  opts.RecentTransactions,
		watches: make(map[uint64]func()),
	}
	if s.log == nil {
		s.log = scopecache.NopLogger{}
	}
	if s.recent <= 0 {
		s.recent = 20
	}
	return s, nil
}

func (s *Session) User() string { return s.user }

// ActiveBranchID returns the active branch id, or "" when none is selected.
func (s *Session) ActiveBranchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branch
}

func (s *Session) Branches(ctx context.Context) (scopecache.Result[[]Branch], error) {
	return scopecache.Get(ctx, s.cache, BranchesKey(s.user), func(ctx context.Context) ([]Branch, error) {
		return s.backend.ListBranches(ctx, s.user)
	}, scopecache.QueryOptions{})
}

// ActiveBranch returns the selected branch. When none is selected, or the
// selected one no longer exists, it falls back to the main branch (or the
// first one) and selects it.
func (s *Session) ActiveBranch(ctx context.Context) (Branch, error) {
	res, err := s.Branches(ctx)
	if err != nil && !res.HasValue {
		return Branch{}, err
	}
	if len(res.Value) == 0 {
		return Branch{}, ErrNoBranches
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range res.Value {
		if b.ID == s.branch {
			return b, nil
		}
	}
	pick := res.Value[0]
	for _, b := range res.Value {
		if b.IsMain {
			pick = b
			break
		}
	}
	s.branch = pick.ID
	return pick, nil
}

// SelectBranch makes id the active branch. It must be one of the user's
// branches.
func (s *Session) SelectBranch(ctx context.Context, id string) (Branch, error) {
	res, err := s.Branches(ctx)
	if err != nil && !res.HasValue {
		return Branch{}, err
	}
	for _, b := range res.Value {
		if b.ID == id {
			s.mu.Lock()
			s.branch = id
			s.mu.Unlock()
			return b, nil
		}
	}
	return Branch{}, ErrUnknownBranch
}

func (s *Session) ProductCount(ctx context.Context) (scopecache.Result[int], error) {
	branch := s.ActiveBranchID()
	return scopecache.Get(ctx, s.cache, ProductCountKey(s.user, branch), s.countProducts(branch), scopecache.QueryOptions{})
}

func (s *Session) countProducts(branch string) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		return s.backend.CountProducts(ctx, s.user, branch)
	}
}

// OnboardingProductCount counts products over all branches; the onboarding
// flow uses it to tell whether the first product exists.
func (s *Session) OnboardingProductCount(ctx context.Context) (scopecache.Result[int], error) {
	return scopecache.Get(ctx, s.cache, OnboardingProductCountKey(s.user), func(ctx context.Context) (int, error) {
		return s.backend.CountUserProducts(ctx, s.user)
	}, scopecache.QueryOptions{})
}

func (s *Session) Onboarding(ctx context.Context) (scopecache.Result[Onboarding], error) {
	return scopecache.Get(ctx, s.cache, OnboardingKey(s.user), func(ctx context.Context) (Onboarding, error) {
		st, err := s.backend.OnboardingStatus(ctx, s.user)
		return Onboarding{Status: st}, err
	}, scopecache.QueryOptions{})
}

func (s *Session) Products(ctx context.Context) (scopecache.Result[[]Product], error) {
	branch := s.ActiveBranchID()
	return scopecache.Get(ctx, s.cache, ProductsKey(s.user, branch), func(ctx context.Context) ([]Product, error) {
		return s.backend.ListProducts(ctx, s.user, branch)
	}, scopecache.QueryOptions{})
}

func (s *Session) StockTransactions(ctx context.Context) (scopecache.Result[[]StockTransaction], error) {
	branch := s.ActiveBranchID()
	return scopecache.Get(ctx, s.cache, StockTransactionsKey(s.user, branch), func(ctx context.Context) ([]StockTransaction, error) {
		return s.backend.ListStockTransactions(ctx, s.user, branch, s.recent)
	}, scopecache.QueryOptions{})
}

func (s *Session) Dashboard(ctx context.Context) (scopecache.Result[Dashboard], error) {
	branch := s.ActiveBranchID()
	return scopecache.Get(ctx, s.cache, DashboardKey(s.user, branch), func(ctx context.Context) (Dashboard, error) {
		products, err := s.backend.ListProducts(ctx, s.user, branch)
		if err != nil {
			return Dashboard{}, err
		}
		txs, err := s.backend.ListStockTransactions(ctx, s.user, branch, s.recent)
		if err != nil {
			return Dashboard{}, err
		}
		return summarize(products, txs), nil
	}, scopecache.QueryOptions{})
}

func summarize(products []Product, txs []StockTransaction) Dashboard {
	d := Dashboard{ProductCount: len(products), RecentTransactions: txs}
	for _, p := range products {
		d.TotalUnits += p.Quantity
		if p.Quantity <= p.MinStockLevel {
			d.LowStock++
		}
	}
	return d
}

// NeedsOnboarding reports whether the onboarding flow must be shown.
func (s *Session) NeedsOnboarding(ctx context.Context) (bool, error) {
	res, err := s.Onboarding(ctx)
	if err != nil && !res.HasValue {
		return false, err
	}
	return res.Value.Needs(), nil
}

// OnboardingInput is what the onboarding wizard collects.
type OnboardingInput struct {
	// BranchName names the first branch. Ignored when the user already has one.
	BranchName string
	Product    NewProduct
}

// CompleteOnboarding creates the first branch if needed, creates the first
// product in the active branch and marks onboarding done. A failure to update
// the status is returned wrapped in ErrOnboardingState together with the
// created product; the caches are invalidated either way.
func (s *Session) CompleteOnboarding(ctx context.Context, in OnboardingInput) (Product, error) {
	if err := in.Product.validate(); err != nil {
		return Product{}, err
	}

	branch, err := s.ActiveBranch(ctx)
	if errors.Is(err, ErrNoBranches) {
		if branch, err = s.backend.CreateBranch(ctx, s.user, in.BranchName); err == nil {
			s.mu.Lock()
			s.branch = branch.ID
			s.mu.Unlock()
		}
	}
	if err != nil {
		return Product{}, err
	}

	p, err := s.backend.CreateProduct(ctx, s.user, branch.ID, in.Product)
	if err != nil {
		s.cache.InvalidateTags(ctx, TagBranches)
		return Product{}, err
	}

	var stateErr error
	if err := s.backend.MarkOnboardingDone(ctx, s.user); err != nil {
		s.log.Warn("product created but onboarding status not updated", scopecache.Fields{"user": s.user, "err": err})
		stateErr = errors.Join(ErrOnboardingState, err)
	}

	s.cache.InvalidateTags(ctx,
		TagProductCount,
		TagOnboardingProductCount,
		TagProducts,
		TagBranches,
		TagOnboardingStatus,
		TagStockTransactions,
		TagDashboardData,
	)
	s.log.Info("onboarding completed", scopecache.Fields{"user": s.user, "branch": branch.ID, "product": p.ID})
	return p, stateErr
}

func (s *Session) CreateBranch(ctx context.Context, name string) (Branch, error) {
	b, err := s.backend.CreateBranch(ctx, s.user, name)
	if err != nil {
		return Branch{}, err
	}
	s.cache.InvalidateTags(ctx, TagBranches)
	s.log.Debug("branch created", scopecache.Fields{"user": s.user, "branch": b.ID})
	return b, nil
}

// CreateProduct adds a product to the active branch.
func (s *Session) CreateProduct(ctx context.Context, np NewProduct) (Product, error) {
	branch := s.ActiveBranchID()
	if branch == "" {
		return Product{}, ErrUnknownBranch
	}
	p, err := s.backend.CreateProduct(ctx, s.user, branch, np)
	if err != nil {
		return Product{}, err
	}
	s.cache.InvalidateTags(ctx,
		TagProducts,
		TagProductCount,
		TagOnboardingProductCount,
		TagStockTransactions,
		TagDashboardData,
	)
	return p, nil
}

// AdjustStock changes the quantity of a product of the active branch.
func (s *Session) AdjustStock(ctx context.Context, product string, delta int, reason string) (StockTransaction, error) {
	branch := s.ActiveBranchID()
	if branch == "" {
		return StockTransaction{}, ErrUnknownBranch
	}
	tx, err := s.backend.AdjustStock(ctx, s.user, branch, product, delta, reason)
	if err != nil {
		return StockTransaction{}, err
	}
	s.cache.InvalidateTags(ctx, TagProducts, TagStockTransactions, TagDashboardData, TagProductCount)
	return tx, nil
}

// WatchProductCount subscribes to the product count of the active branch and
// calls fn on every change, starting with the initial fetch. The returned stop
// func ends the watch; SignOut stops all watches.
func (s *Session) WatchProductCount(ctx context.Context, fn func(scopecache.Result[int])) (stop func(), err error) {
	branch := s.ActiveBranchID()
	key := ProductCountKey(s.user, branch)
	sub, err := s.cache.Subscribe(key)
	if err != nil {
		return nil, err
	}
	cancel := s.cache.OnChange(key, func(snap scopecache.Snapshot) {
		if r, err := scopecache.As[int](snap); err == nil {
			fn(r)
		}
	})

	s.mu.Lock()
	s.nextW++
	id := s.nextW
	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			sub.Unsubscribe()
			s.mu.Lock()
			delete(s.watches, id)
			s.mu.Unlock()
		})
	}
	s.watches[id] = stop
	s.mu.Unlock()

	// fetch errors reach fn through the snapshot
	if _, err := scopecache.Get(ctx, s.cache, key, s.countProducts(branch), scopecache.QueryOptions{}); err != nil {
		var fe *scopecache.FetchError
		if !errors.As(err, &fe) {
			stop()
			return nil, err
		}
	}
	return stop, nil
}

// Trigger returns the named invalidation of every query of this user.
func (s *Session) Trigger(name string) scopecache.Trigger {
	return scopecache.Trigger{Name: name, Match: MatchUser(s.user)}
}

// WindowFocused revalidates the user's queries after the app regains focus.
func (s *Session) WindowFocused(ctx context.Context) int {
	return s.cache.Fire(ctx, s.Trigger(TriggerWindowFocus))
}

// Reconnected revalidates the user's queries after the network came back.
func (s *Session) Reconnected(ctx context.Context) int {
	return s.cache.Fire(ctx, s.Trigger(TriggerReconnect))
}

// SignOut stops every watch, drops all cached data and clears the active
// branch. The cache stays usable for the next session.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	stops := make([]func(), 0, len(s.watches))
	for _, stop := range s.watches {
		stops = append(stops, stop)
	}
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	s.cache.Reset(ctx)

	s.mu.Lock()
	s.branch = ""
	s.mu.Unlock()
	s.log.Info("signed out", scopecache.Fields{"user": s.user})
}
