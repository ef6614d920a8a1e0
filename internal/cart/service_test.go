package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-order-settlement/internal/cart"
	"github.com/ariefcatur/go-order-settlement/internal/memory"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *cart.Service {
	catalog := memory.NewCatalog(orders.Product{ID: "P1", Name: "Mug", Price: decimal.NewFromInt(10), Stock: 3})
	return &cart.Service{Store: memory.NewCarts(), Catalog: catalog, Ledger: catalog}
}

func TestAddItemMergesQuantities(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	lines, err := svc.AddItem(ctx, "u1", "P1", 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	lines, err = svc.AddItem(ctx, "u1", "P1", 2)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestAddItemChecksStockAgainstMergedQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.AddItem(ctx, "u1", "P1", 2)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "u1", "P1", 2)
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	var ise *orders.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 4, ise.Requested)
	assert.Equal(t, 3, ise.Available)

	lines, err := svc.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	cases := []struct {
		name          string
		user, product string
		qty           int
		want          error
	}{
		{"no user", "", "P1", 1, orders.ErrInvalidInput},
		{"no product", "u1", "", 1, orders.ErrInvalidInput},
		{"zero qty", "u1", "P1", 0, orders.ErrInvalidInput},
		{"negative qty", "u1", "P1", -1, orders.ErrInvalidInput},
		{"unknown product", "u1", "ghost", 1, orders.ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, tc.user, tc.product, tc.qty)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.AddItem(ctx, "u1", "P1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, "u1", "P1"))
	lines, err := svc.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = svc.AddItem(ctx, "u1", "P1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "u1"))
	lines, err = svc.Lines(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
