package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepo is the Postgres catalog and stock ledger.
type PGRepo struct{ DB *pgxpool.Pool }

func (r *PGRepo) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	var p orders.Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, fmt.Errorf("%w: %s", orders.ErrProductNotFound, id)
	}
	return p, err
}

func (r *PGRepo) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, price, stock, created_at, updated_at
                                FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reserve decrements stock only when enough is left; the row lock taken by
// the UPDATE serializes concurrent reservations of the same product.
func (r *PGRepo) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", orders.ErrInvalidInput)
	}
	var left int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// no row updated: either unknown product or not enough stock
	var stock int
	err = r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	if err != nil {
		return 0, err
	}
	return 0, &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: stock}
}

func (r *PGRepo) Restore(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", orders.ErrInvalidInput)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	return nil
}

func (r *PGRepo) HasStock(ctx context.Context, productID string, qty int) (bool, error) {
	var stock int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	if err != nil {
		return false, err
	}
	return stock >= qty, nil
}

// Seed upserts products; existing stock is overwritten.
func (r *PGRepo) Seed(ctx context.Context, ps []orders.Product) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range ps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products(id, name, price, stock)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = now()
		`, p.ID, p.Name, p.Price, p.Stock); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	return tx.Commit(ctx)
}
