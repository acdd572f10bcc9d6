package inventory

import (
	"context"
	"errors"
)

var (
	ErrUnknownBranch   = errors.New("inventory: unknown branch")
	ErrUnknownProduct  = errors.New("inventory: unknown product")
	ErrNoBranches      = errors.New("inventory: user has no branches")
	ErrInvalidInput    = errors.New("inventory: invalid input")
	ErrOnboardingState = errors.New("inventory: failed to update onboarding status")
)

// Backend is the remote data source. Implementations scope every call to the
// given user: a branch or product of another user is unknown.
type Backend interface {
	ListBranches(ctx context.Context, user string) ([]Branch, error)
	ListProducts(ctx context.Context, user, branch string) ([]Product, error)
	CountProducts(ctx context.Context, user, branch string) (int, error)
	// CountUserProducts counts products across all of the user's branches.
	CountUserProducts(ctx context.Context, user string) (int, error)
	// OnboardingStatus returns "" when the user never started onboarding.
	OnboardingStatus(ctx context.Context, user string) (string, error)
	// ListStockTransactions returns the newest transactions first. limit <= 0
	// means no limit.
	ListStockTransactions(ctx context.Context, user, branch string, limit int) ([]StockTransaction, error)

	// CreateBranch creates a branch. The user's first branch becomes the main one.
	CreateBranch(ctx context.Context, user, name string) (Branch, error)
	// CreateProduct records an initial incoming transaction when p.Quantity > 0.
	CreateProduct(ctx context.Context, user, branch string, p NewProduct) (Product, error)
	AdjustStock(ctx context.Context, user, branch, product string, delta int, reason string) (StockTransaction, error)
	MarkOnboardingDone(ctx context.Context, user string) error
}

// Reason of the transaction CreateProduct records for the initial stock.
const ReasonInitialStock = "initial stock"

func (p NewProduct) validate() error {
	if p.Name == "" {
		return errors.Join(ErrInvalidInput, errors.New("product name is required"))
	}
	if p.Quantity < 0 || p.MinStockLevel < 0 {
		return errors.Join(ErrInvalidInput, errors.New("quantities must not be negative"))
	}
	return nil
}
