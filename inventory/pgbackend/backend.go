// Package pgbackend is the PostgreSQL implementation of inventory.Backend.
package pgbackend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unkn0wn-root/scopecache/inventory"
)

// Backend runs every query filtered by the owning user.
type Backend struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ inventory.Backend = (*Backend)(nil)

func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool, now: time.Now}
}

// WithTx executes fn within a transaction. It is rolled back when fn returns
// an error or panics.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func scanBranch(row pgx.CollectableRow) (inventory.Branch, error) {
	var b inventory.Branch
	err := row.Scan(&b.ID, &b.Name, &b.IsMain, &b.CreatedAt)
	return b, err
}

func scanProduct(row pgx.CollectableRow) (inventory.Product, error) {
	var p inventory.Product
	err := row.Scan(&p.ID, &p.BranchID, &p.Name, &p.SKU, &p.Quantity, &p.MinStockLevel, &p.CreatedAt)
	return p, err
}

func scanTx(row pgx.CollectableRow) (inventory.StockTransaction, error) {
	var t inventory.StockTransaction
	err := row.Scan(&t.ID, &t.ProductID, &t.BranchID, &t.Delta, &t.Reason, &t.CreatedAt)
	return t, err
}

func (b *Backend) ListBranches(ctx context.Context, user string) ([]inventory.Branch, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, name, is_main, created_at FROM branches WHERE user_id = $1 ORDER BY created_at, id`, user)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBranch)
}

func (b *Backend) ListProducts(ctx context.Context, user, branch string) ([]inventory.Product, error) {
	if err := b.checkBranch(ctx, b.pool, user, branch); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx,
		`SELECT id, branch_id, name, sku, quantity, min_stock_level, created_at
		   FROM products WHERE user_id = $1 AND branch_id = $2
		  ORDER BY created_at, name`, user, branch)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (b *Backend) CountProducts(ctx context.Context, user, branch string) (int, error) {
	if err := b.checkBranch(ctx, b.pool, user, branch); err != nil {
		return 0, err
	}
	var n int
	err := b.pool.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE user_id = $1 AND branch_id = $2`, user, branch).Scan(&n)
	return n, err
}

func (b *Backend) CountUserProducts(ctx context.Context, user string) (int, error) {
	var n int
	err := b.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE user_id = $1`, user).Scan(&n)
	return n, err
}

func (b *Backend) OnboardingStatus(ctx context.Context, user string) (string, error) {
	var st string
	err := b.pool.QueryRow(ctx,
		`SELECT coalesce(onboarding, '') FROM profiles WHERE user_id = $1`, user).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return st, err
}

func (b *Backend) ListStockTransactions(ctx context.Context, user, branch string, limit int) ([]inventory.StockTransaction, error) {
	if err := b.checkBranch(ctx, b.pool, user, branch); err != nil {
		return nil, err
	}
	var lim any // NULL => no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := b.pool.Query(ctx,
		`SELECT id, product_id, branch_id, delta, reason, created_at
		   FROM stock_transactions WHERE user_id = $1 AND branch_id = $2
		  ORDER BY created_at DESC, id DESC LIMIT $3`, user, branch, lim)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTx)
}

func (b *Backend) CreateBranch(ctx context.Context, user, name string) (inventory.Branch, error) {
	if user == "" || name == "" {
		return inventory.Branch{}, errors.Join(inventory.ErrInvalidInput, errors.New("user and branch name are required"))
	}
	br := inventory.Branch{ID: uuid.NewString(), Name: name, CreatedAt: b.now().UTC()}
	err := WithTx(ctx, b.pool, func(tx pgx.Tx) error {
		// serializes the first-branch check per user
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, user); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM branches WHERE user_id = $1)`, user).Scan(&exists); err != nil {
			return err
		}
		br.IsMain = !exists
		_, err := tx.Exec(ctx,
			`INSERT INTO branches (id, user_id, name, is_main, created_at) VALUES ($1, $2, $3, $4, $5)`,
			br.ID, user, br.Name, br.IsMain, br.CreatedAt)
		return err
	})
	if err != nil {
		return inventory.Branch{}, err
	}
	return br, nil
}

func (b *Backend) CreateProduct(ctx context.Context, user, branch string, np inventory.NewProduct) (inventory.Product, error) {
	if np.Name == "" || np.Quantity < 0 || np.MinStockLevel < 0 {
		return inventory.Product{}, errors.Join(inventory.ErrInvalidInput, errors.New("invalid product"))
	}
	now := b.now().UTC()
	p := inventory.Product{
		ID:            uuid.NewString(),
		BranchID:      branch,
		Name:          np.Name,
		SKU:           np.SKU,
		Quantity:      np.Quantity,
		MinStockLevel: np.MinStockLevel,
		CreatedAt:     now,
	}
	err := WithTx(ctx, b.pool, func(tx pgx.Tx) error {
		if err := b.checkBranch(ctx, tx, user, branch); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO products (id, user_id, branch_id, name, sku, quantity, min_stock_level, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, user, branch, p.Name, p.SKU, p.Quantity, p.MinStockLevel, now)
		if err != nil || np.Quantity == 0 {
			return err
		}
		_, err = insertTx(ctx, tx, user, p.ID, branch, np.Quantity, inventory.ReasonInitialStock, now)
		return err
	})
	if err != nil {
		return inventory.Product{}, err
	}
	return p, nil
}

func (b *Backend) AdjustStock(ctx context.Context, user, branch, product string, delta int, reason string) (inventory.StockTransaction, error) {
	if delta == 0 {
		return inventory.StockTransaction{}, errors.Join(inventory.ErrInvalidInput, errors.New("delta must not be zero"))
	}
	var out inventory.StockTransaction
	err := WithTx(ctx, b.pool, func(tx pgx.Tx) error {
		var qty int
		err := tx.QueryRow(ctx,
			`SELECT quantity FROM products WHERE id = $1 AND user_id = $2 AND branch_id = $3 FOR UPDATE`,
			product, user, branch).Scan(&qty)
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.ErrUnknownProduct
		}
		if err != nil {
			return err
		}
		if qty+delta < 0 {
			return errors.Join(inventory.ErrInvalidInput, errors.New("stock cannot go negative"))
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET quantity = quantity + $1 WHERE id = $2`, delta, product); err != nil {
			return err
		}
		out, err = insertTx(ctx, tx, user, product, branch, delta, reason, b.now().UTC())
		return err
	})
	return out, err
}

func (b *Backend) MarkOnboardingDone(ctx context.Context, user string) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, onboarding) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET onboarding = excluded.onboarding`,
		user, inventory.OnboardingDone)
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (b *Backend) checkBranch(ctx context.Context, q querier, user, branch string) error {
	var ok bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1 AND user_id = $2)`, branch, user).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return inventory.ErrUnknownBranch
	}
	return nil
}

func insertTx(ctx context.Context, tx pgx.Tx, user, product, branch string, delta int, reason string, at time.Time) (inventory.StockTransaction, error) {
	t := inventory.StockTransaction{
		ID:        uuid.NewString(),
		ProductID: product,
		BranchID:  branch,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: at,
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO stock_transactions (id, user_id, product_id, branch_id, delta, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, user, product, branch, delta, reason, at)
	return t, err
}
