package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names passed to the MemoryBackend hook.
const (
	OpListBranches          = "ListBranches"
	OpListProducts          = "ListProducts"
	OpCountProducts         = "CountProducts"
	OpCountUserProducts     = "CountUserProducts"
	OpOnboardingStatus      = "OnboardingStatus"
	OpListStockTransactions = "ListStockTransactions"
	OpCreateBranch          = "CreateBranch"
	OpCreateProduct         = "CreateProduct"
	OpAdjustStock           = "AdjustStock"
	OpMarkOnboardingDone    = "MarkOnboardingDone"
)

// CallHook runs before every MemoryBackend operation. A non-nil error fails
// the call. Tests use it to block, count or fail calls.
type CallHook func(ctx context.Context, op, user string) error

type memProduct struct {
	Product
	user string
}

type memTx struct {
	StockTransaction
	user string
}

// MemoryBackend is an in-process Backend for tests and the demo.
type MemoryBackend struct {
	mu         sync.Mutex
	branches   map[string][]Branch // by user
	products   map[string]*memProduct
	txs        []memTx
	onboarding map[string]string
	calls      map[string]int
	hook       CallHook
	now        func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		branches:   make(map[string][]Branch),
		products:   make(map[string]*memProduct),
		onboarding: make(map[string]string),
		calls:      make(map[string]int),
		now:        time.Now,
	}
}

// SetHook installs fn as the call hook; nil removes it.
func (b *MemoryBackend) SetHook(fn CallHook) {
	b.mu.Lock()
	b.hook = fn
	b.mu.Unlock()
}

// SetOnboarding overrides the stored onboarding status of user.
func (b *MemoryBackend) SetOnboarding(user, status string) {
	b.mu.Lock()
	b.onboarding[user] = status
	b.mu.Unlock()
}

// Calls returns how many times op was invoked, including failed calls.
func (b *MemoryBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *MemoryBackend) enter(ctx context.Context, op, user string) error {
	b.mu.Lock()
	b.calls[op]++
	h := b.hook
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if h != nil {
		return h(ctx, op, user)
	}
	return nil
}

func (b *MemoryBackend) ListBranches(ctx context.Context, user string) ([]Branch, error) {
	if err := b.enter(ctx, OpListBranches, user); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Branch(nil), b.branches[user]...), nil
}

func (b *MemoryBackend) ListProducts(ctx context.Context, user, branch string) ([]Product, error) {
	if err := b.enter(ctx, OpListProducts, user); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsLocked(user, branch) {
		return nil, ErrUnknownBranch
	}
	out := []Product{}
	for _, p := range b.products {
		if p.user == user && p.BranchID == branch {
			out = append(out, p.Product)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (b *MemoryBackend) CountProducts(ctx context.Context, user, branch string) (int, error) {
	if err := b.enter(ctx, OpCountProducts, user); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsLocked(user, branch) {
		return 0, ErrUnknownBranch
	}
	n := 0
	for _, p := range b.products {
		if p.user == user && p.BranchID == branch {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) CountUserProducts(ctx context.Context, user string) (int, error) {
	if err := b.enter(ctx, OpCountUserProducts, user); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.products {
		if p.user == user {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) OnboardingStatus(ctx context.Context, user string) (string, error) {
	if err := b.enter(ctx, OpOnboardingStatus, user); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onboarding[user], nil
}

func (b *MemoryBackend) ListStockTransactions(ctx context.Context, user, branch string, limit int) ([]StockTransaction, error) {
	if err := b.enter(ctx, OpListStockTransactions, user); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsLocked(user, branch) {
		return nil, ErrUnknownBranch
	}
	out := []StockTransaction{}
	for i := len(b.txs) - 1; i >= 0; i-- {
		tx := b.txs[i]
		if tx.user != user || tx.BranchID != branch {
			continue
		}
		out = append(out, tx.StockTransaction)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (b *MemoryBackend) CreateBranch(ctx context.Context, user, name string) (Branch, error) {
	if err := b.enter(ctx, OpCreateBranch, user); err != nil {
		return Branch{}, err
	}
	if user == "" || name == "" {
		return Branch{}, errors.Join(ErrInvalidInput, errors.New("user and branch name are required"))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	br := Branch{
		ID:        uuid.NewString(),
		Name:      name,
		IsMain:    len(b.branches[user]) == 0,
		CreatedAt: b.now(),
	}
	b.branches[user] = append(b.branches[user], br)
	return br, nil
}

func (b *MemoryBackend) CreateProduct(ctx context.Context, user, branch string, np NewProduct) (Product, error) {
	if err := b.enter(ctx, OpCreateProduct, user); err != nil {
		return Product{}, err
	}
	if err := np.validate(); err != nil {
		return Product{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsLocked(user, branch) {
		return Product{}, ErrUnknownBranch
	}
	now := b.now()
	p := Product{
		ID:            uuid.NewString(),
		BranchID:      branch,
		Name:          np.Name,
		SKU:           np.SKU,
		Quantity:      np.Quantity,
		MinStockLevel: np.MinStockLevel,
		CreatedAt:     now,
	}
	b.products[p.ID] = &memProduct{Product: p, user: user}
	if np.Quantity > 0 {
		b.appendTxLocked(user, p.ID, branch, np.Quantity, ReasonInitialStock, now)
	}
	return p, nil
}

func (b *MemoryBackend) AdjustStock(ctx context.Context, user, branch, product string, delta int, reason string) (StockTransaction, error) {
	if err := b.enter(ctx, OpAdjustStock, user); err != nil {
		return StockTransaction{}, err
	}
	if delta == 0 {
		return StockTransaction{}, errors.Join(ErrInvalidInput, errors.New("delta must not be zero"))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.products[product]
	if !ok || p.user != user || p.BranchID != branch {
		return StockTransaction{}, ErrUnknownProduct
	}
	if p.Quantity+delta < 0 {
		return StockTransaction{}, errors.Join(ErrInvalidInput, errors.New("stock cannot go negative"))
	}
	p.Quantity += delta
	return b.appendTxLocked(user, product, branch, delta, reason, b.now()), nil
}

func (b *MemoryBackend) MarkOnboardingDone(ctx context.Context, user string) error {
	if err := b.enter(ctx, OpMarkOnboardingDone, user); err != nil {
		return err
	}
	b.mu.Lock()
	b.onboarding[user] = OnboardingDone
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) ownsLocked(user, branch string) bool {
	for _, br := range b.branches[user] {
		if br.ID == branch {
			return true
		}
	}
	return false
}

func (b *MemoryBackend) appendTxLocked(user, product, branch string, delta int, reason string, at time.Time) StockTransaction {
	tx := StockTransaction{
		ID:        uuid.NewString(),
		ProductID: product,
		BranchID:  branch,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: at,
	}
	b.txs = append(b.txs, memTx{StockTransaction: tx, user: user})
	return tx
}
