package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/inventory"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/ariefcatur/go-order-settlement/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

// Set TEST_POSTGRES_DSN to run against a scratch database.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn != "" {
		if err := postgres.Migrate("file://../../migrations", dsn); err != nil {
			panic(err)
		}
		pool, err := postgres.Connect(context.Background(), dsn)
		if err != nil {
			panic(err)
		}
		testDB = pool
	}
	code := m.Run()
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
}

func seedProduct(t *testing.T, repo *inventory.PGRepo, stock int) orders.Product {
	t.Helper()
	p := orders.Product{ID: "P-" + uuid.NewString()[:8], Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: stock}
	require.NoError(t, repo.Seed(context.Background(), []orders.Product{p}))
	return p
}

func TestInventoryReserveGuardsStock(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := &inventory.PGRepo{DB: testDB}
	p := seedProduct(t, repo, 3)

	left, err := repo.Reserve(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	_, err = repo.Reserve(ctx, p.ID, 2)
	var ise *orders.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 1, ise.Available)

	_, err = repo.Reserve(ctx, "nope-"+uuid.NewString(), 1)
	assert.ErrorIs(t, err, orders.ErrProductNotFound)

	require.NoError(t, repo.Restore(ctx, p.ID, 2))
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
	assert.True(t, got.Price.Equal(p.Price))
}

func TestInventoryConcurrentReserve(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := &inventory.PGRepo{DB: testDB}
	p := seedProduct(t, repo, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, p.ID, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, got.Stock)
}

func newOrder(t *testing.T, productID string) orders.Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.NewString()
	return orders.Order{
		ID:          id,
		UserID:      "u-" + uuid.NewString()[:8],
		Status:      orders.StatusCreated,
		TotalAmount: decimal.RequireFromString("25"),
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines: []orders.OrderLine{
			{ID: uuid.NewString(), OrderID: id, ProductID: productID, Quantity: 2, Price: decimal.RequireFromString("12.50")},
		},
	}
}

func TestOrderStoreRoundTripAndCompareAndSet(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := &inventory.PGRepo{DB: testDB}
	store := &orders.PGStore{DB: testDB}
	p := seedProduct(t, repo, 5)

	o := newOrder(t, p.ID)
	require.NoError(t, store.CreateOrder(ctx, o))

	got, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCreated, got.Status)
	assert.True(t, got.TotalAmount.Equal(o.TotalAmount))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, p.ID, got.Lines[0].ProductID)

	list, err := store.ListOrdersByUser(ctx, o.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lines, 1)

	changed, err := store.UpdateStatusIf(ctx, o.ID, orders.StatusCreated, orders.StatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.UpdateStatusIf(ctx, o.ID, orders.StatusCreated, orders.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = store.UpdateStatusIf(ctx, uuid.NewString(), orders.StatusCreated, orders.StatusPaid)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestPaymentStoreUniquePerOrder(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := &inventory.PGRepo{DB: testDB}
	ostore := &orders.PGStore{DB: testDB}
	pstore := &payments.PGStore{DB: testDB}
	o := newOrder(t, seedProduct(t, repo, 5).ID)
	require.NoError(t, ostore.CreateOrder(ctx, o))

	now := time.Now().UTC()
	pay := payments.Payment{
		ID: uuid.NewString(), OrderID: o.ID, PaymentID: payments.NewToken(),
		Amount: o.TotalAmount, Status: payments.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, pstore.Create(ctx, pay))

	dup := pay
	dup.ID, dup.PaymentID = uuid.NewString(), payments.NewToken()
	assert.ErrorIs(t, pstore.Create(ctx, dup), payments.ErrDuplicatePayment)

	got, err := pstore.GetByPaymentID(ctx, pay.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.OrderID)

	ok, err := pstore.UpdateStatusIf(ctx, pay.PaymentID, payments.StatusPending, payments.StatusSuccess)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = pstore.UpdateStatusIf(ctx, pay.PaymentID, payments.StatusPending, payments.StatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = pstore.GetByOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, payments.ErrPaymentNotFound)
}
