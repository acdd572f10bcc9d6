// Package inventory is the branch-scoped data layer of the inventory app: it
// reads branches, products, stock and onboarding state from a Backend through
// a per-session scopecache.Cache and invalidates the dependent queries after
// every write.
package inventory

import "time"

type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsMain    bool      `json:"is_main"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku,omitempty"`
	Quantity      int       `json:"quantity"`
	MinStockLevel int       `json:"min_stock_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewProduct is the input of Backend.CreateProduct.
type NewProduct struct {
	Name          string
	SKU           string
	Quantity      int
	MinStockLevel int
}

type StockTransaction struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	BranchID  string    `json:"branch_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard is the summary shown on the branch dashboard.
type Dashboard struct {
	ProductCount       int                `json:"product_count"`
	LowStock           int                `json:"low_stock"`
	TotalUnits         int                `json:"total_units"`
	RecentTransactions []StockTransaction `json:"recent_transactions"`
}

const (
	OnboardingDone       = "done"
	OnboardingInProgress = "in_progress"
)

// Onboarding is the user's onboarding state. Status is empty when the user
// has never started.
type Onboarding struct {
	Status string `json:"status"`
}

// Needs reports whether the onboarding flow must be shown.
func (o Onboarding) Needs() bool { return NeedsOnboarding(o.Status) }

// NeedsOnboarding is the single onboarding predicate: anything other than
// "done" (empty, "in_progress", unknown values) still needs onboarding.
func NeedsOnboarding(status string) bool { return status != OnboardingDone }
