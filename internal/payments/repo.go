package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PGStore keeps payments in Postgres. order_id carries a unique constraint.
type PGStore struct{ DB *pgxpool.Pool }

func (r *PGStore) Create(ctx context.Context, p Payment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, payment_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OrderID, p.PaymentID, p.Amount, string(p.Status), p.CreatedAt, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PGStore) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	return r.get(ctx, `WHERE order_id=$1`, orderID)
}

func (r *PGStore) GetByPaymentID(ctx context.Context, paymentID string) (Payment, error) {
	return r.get(ctx, `WHERE payment_id=$1`, paymentID)
}

func (r *PGStore) get(ctx context.Context, where string, arg string) (Payment, error) {
	var p Payment
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, payment_id, amount, status, created_at, updated_at
		FROM payments `+where, arg,
	).Scan(&p.ID, &p.OrderID, &p.PaymentID, &p.Amount, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Status = Status(status)
	return p, nil
}

func (r *PGStore) UpdateStatusIf(ctx context.Context, paymentID string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$3, updated_at=now()
		WHERE payment_id=$1 AND status=$2`, paymentID, string(from), string(to))
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE payment_id=$1)`, paymentID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrPaymentNotFound
	}
	return false, nil
}
