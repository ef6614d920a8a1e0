package payments_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ariefcatur/go-order-settlement/internal/memory"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type fakeGateway struct {
	mu   sync.Mutex
	reqs []payments.SettleRequest
	err  error
}

func (g *fakeGateway) Settle(_ context.Context, req payments.SettleRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	return g.err
}

func (g *fakeGateway) calls() []payments.SettleRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payments.SettleRequest(nil), g.reqs...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type PaymentsSuite struct {
	suite.Suite
	ctx     context.Context
	catalog *memory.Catalog
	carts   *memory.Carts
	store   *memory.PaymentStore
	gw      *fakeGateway
	orders  *orders.Service
	coord   *payments.Coordinator
	recon   *payments.Reconciler
}

func TestPaymentsSuite(t *testing.T) {
	suite.Run(t, new(PaymentsSuite))
}

func (s *PaymentsSuite) SetupTest() {
	s.ctx = context.Background()
	s.catalog = memory.NewCatalog(orders.Product{ID: "P1", Name: "Mug", Price: dec("10"), Stock: 5})
	s.carts = memory.NewCarts()
	s.store = memory.NewPaymentStore()
	s.gw = &fakeGateway{}
	s.orders = &orders.Service{
		Catalog: s.catalog,
		Ledger:  s.catalog,
		Carts:   s.carts,
		Store:   memory.NewOrderStore(),
	}
	s.coord = &payments.Coordinator{Orders: s.orders, Store: s.store, Gateway: s.gw}
	s.recon = &payments.Reconciler{Store: s.store, Orders: s.orders}
}

func (s *PaymentsSuite) newOrder() orders.Order {
	_, err := s.carts.Add(s.ctx, "u1", "P1", 2)
	s.Require().NoError(err)
	o, err := s.orders.CreateOrder(s.ctx, "u1")
	s.Require().NoError(err)
	return o
}

func (s *PaymentsSuite) orderStatus(id string) orders.Status {
	o, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	return o.Status
}

func (s *PaymentsSuite) TestSettlementScenario() {
	o := s.newOrder()
	s.True(o.TotalAmount.Equal(dec("20")))

	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20.00"))
	s.Require().NoError(err)
	s.Equal(payments.StatusPending, p.Status)
	s.True(strings.HasPrefix(p.PaymentID, "pay_"))

	calls := s.gw.calls()
	s.Require().Len(calls, 1)
	s.Equal(p.PaymentID, calls[0].PaymentID)
	s.Equal(o.ID, calls[0].OrderID)
	s.True(calls[0].Amount.Equal(dec("20")))

	res, err := s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, OrderID: o.ID, Status: "SUCCESS"})
	s.Require().NoError(err)
	s.Equal(payments.StatusSuccess, res.Payment.Status)
	s.Equal(orders.StatusPaid, res.OrderStatus)
	s.True(res.OrderUpdated)
	s.False(res.Duplicate)
	s.Equal(orders.StatusPaid, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestDispatchFailureIsSwallowed() {
	o := s.newOrder()
	s.gw.err = errors.New("connection refused")

	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)
	s.Equal(payments.StatusPending, p.Status)

	stored, err := s.coord.GetByOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(p.PaymentID, stored.PaymentID)
	s.Equal(payments.StatusPending, stored.Status)
}

func (s *PaymentsSuite) TestSecondPaymentIsDuplicate() {
	o := s.newOrder()
	first, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	_, err = s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.ErrorIs(err, payments.ErrDuplicatePayment)

	stored, err := s.coord.GetByOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(first, stored)
	s.Len(s.gw.calls(), 1)
}

func (s *PaymentsSuite) TestConcurrentCreatorsOnlyOneWins() {
	o := s.newOrder()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, payments.ErrDuplicatePayment):
				dups++
			}
		}()
	}
	wg.Wait()
	s.Equal(1, wins)
	s.Equal(9, dups)
}

func (s *PaymentsSuite) TestCreatePaymentValidation() {
	o := s.newOrder()

	_, err := s.coord.CreatePayment(s.ctx, "", dec("20"))
	s.ErrorIs(err, payments.ErrInvalidInput)
	_, err = s.coord.CreatePayment(s.ctx, o.ID, dec("0"))
	s.ErrorIs(err, payments.ErrInvalidInput)
	_, err = s.coord.CreatePayment(s.ctx, o.ID, dec("19.99"))
	s.ErrorIs(err, payments.ErrAmountMismatch)
	_, err = s.coord.CreatePayment(s.ctx, "missing", dec("20"))
	s.ErrorIs(err, orders.ErrOrderNotFound)
	s.Empty(s.gw.calls())
}

func (s *PaymentsSuite) TestCannotPayCancelledOrder() {
	o := s.newOrder()
	s.Require().NoError(s.orders.CancelOrder(s.ctx, o.ID))

	_, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.ErrorIs(err, orders.ErrInvalidStateTransition)
}

func (s *PaymentsSuite) TestDuplicateCallbackIsNoop() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	cb := payments.Callback{PaymentID: p.PaymentID, OrderID: o.ID, Status: "SUCCESS"}
	_, err = s.recon.HandleCallback(s.ctx, cb)
	s.Require().NoError(err)

	res, err := s.recon.HandleCallback(s.ctx, cb)
	s.Require().NoError(err)
	s.True(res.Duplicate)
	s.False(res.OrderUpdated)
	s.Equal(orders.StatusPaid, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestConflictingCallbackRejected() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "SUCCESS"})
	s.Require().NoError(err)

	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "FAILED"})
	s.ErrorIs(err, payments.ErrConflictingCallback)

	stored, _ := s.coord.GetByOrder(s.ctx, o.ID)
	s.Equal(payments.StatusSuccess, stored.Status)
	s.Equal(orders.StatusPaid, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestFailureCallbackFailsOrder() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	res, err := s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "declined"})
	s.Require().NoError(err)
	s.Equal(payments.StatusFailed, res.Payment.Status)
	s.Equal(orders.StatusFailed, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestCallbackAfterCancelIsAcknowledged() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)
	s.Require().NoError(s.orders.CancelOrder(s.ctx, o.ID))

	res, err := s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "SUCCESS"})
	s.Require().NoError(err)
	s.False(res.OrderUpdated)
	s.Equal(payments.StatusSuccess, res.Payment.Status)
	s.Equal(orders.StatusCancelled, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestRedeliveryRepairsOrder() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	// payment settled but the order write never happened
	ok, err := s.store.UpdateStatusIf(s.ctx, p.PaymentID, payments.StatusPending, payments.StatusSuccess)
	s.Require().NoError(err)
	s.Require().True(ok)

	res, err := s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "SUCCESS"})
	s.Require().NoError(err)
	s.True(res.Duplicate)
	s.True(res.OrderUpdated)
	s.Equal(orders.StatusPaid, s.orderStatus(o.ID))
}

func (s *PaymentsSuite) TestCallbackValidation() {
	o := s.newOrder()
	p, err := s.coord.CreatePayment(s.ctx, o.ID, dec("20"))
	s.Require().NoError(err)

	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: "", Status: "SUCCESS"})
	s.ErrorIs(err, payments.ErrInvalidCallback)
	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, Status: "PENDING"})
	s.ErrorIs(err, payments.ErrInvalidCallback)
	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: p.PaymentID, OrderID: "other", Status: "SUCCESS"})
	s.ErrorIs(err, payments.ErrInvalidCallback)
	_, err = s.recon.HandleCallback(s.ctx, payments.Callback{PaymentID: "pay_unknown", Status: "SUCCESS"})
	s.ErrorIs(err, payments.ErrPaymentNotFound)

	stored, _ := s.coord.GetByOrder(s.ctx, o.ID)
	s.Equal(payments.StatusPending, stored.Status)
}
