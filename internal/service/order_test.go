package service_test

import (
	"context"
	"testing"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderReq(items ...domain.OrderLineRequest) *domain.CreateOrderRequest {
	return &domain.CreateOrderRequest{
		Email:           "Ada@Example.com",
		ShippingAddress: lagos(),
		Items:           items,
	}
}

func TestCreateOrder_PricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Agbada", 12500.50, 10)

	o, created, err := f.orders.Create(ctx, guest(), orderReq(
		domain.OrderLineRequest{ProductID: p.ID, Quantity: 2},
		domain.OrderLineRequest{ProductID: p.ID, Quantity: 1},
	))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Regexp(t, `^NS-\d{8}-[0-9A-F]{6}$`, o.OrderNumber)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, domain.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, "ada@example.com", o.Email)
	require.Len(t, o.Items, 1, "duplicate lines merge")
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, 12500.50, o.Items[0].Price)
	assert.Equal(t, 37501.50, o.Subtotal)
	assert.Equal(t, 2500.0, o.ShippingFee)
	assert.Equal(t, 40001.50, o.Total)
	assert.Equal(t, "Nigeria", o.ShippingAddress.Country)
	assert.Equal(t, guestID, o.SessionID)

	// Stock is only taken at payment.
	stored, _ := f.store.GetProduct(ctx, p.ID)
	assert.Equal(t, 10, stored.StockQuantity)
	assert.Equal(t, []string{events.OrderCreated}, f.events.seen())
}

func TestCreateOrder_FreeShippingAtThreshold(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Hand-woven Rug", 50000, 1)

	o, _, err := f.orders.Create(context.Background(), guest(), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, o.ShippingFee)
	assert.Equal(t, 50000.0, o.Total)
}

func TestCreateOrder_FromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bead Bracelet", 2000, 10)
	_, err := f.cart.Add(ctx, guest().Owner(), &domain.AddCartItemRequest{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	o, _, err := f.orders.Create(ctx, guest(), orderReq())
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)

	// The cart is kept until the order is paid.
	cart, _ := f.cart.Get(ctx, guest().Owner())
	assert.Len(t, cart.Items, 1)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.orders.Create(context.Background(), guest(), orderReq())
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Field)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Limited Print", 9000, 2)

	_, _, err := f.orders.Create(context.Background(), guest(), orderReq(
		domain.OrderLineRequest{ProductID: p.ID, Quantity: 2, Size: "S"},
		domain.OrderLineRequest{ProductID: p.ID, Quantity: 1, Size: "M"},
	))
	var stock *domain.ErrInsufficientStock
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 3, stock.Requested)
	assert.Empty(t, f.events.seen())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.orders.Create(context.Background(), guest(), orderReq(
		domain.OrderLineRequest{ProductID: "4f8cbb1e-0f5e-4b8e-9d4e-6f8f2c1a0b11", Quantity: 1},
	))
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Fila Cap", 3500, 10)

	req := orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1})
	req.IdempotencyKey = "key-1"
	first, created, err := f.orders.Create(ctx, guest(), req)
	require.NoError(t, err)
	require.True(t, created)

	again := orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 5})
	again.IdempotencyKey = "key-1"
	second, created, err := f.orders.Create(ctx, guest(), again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Items[0].Quantity)

	other := orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1})
	other.IdempotencyKey = "key-1"
	_, _, err = f.orders.Create(ctx, user("u2"), other)
	var conflict *domain.ErrConflict
	assert.ErrorAs(t, err, &conflict)

	assert.Equal(t, 1, int(f.metrics.Snapshot().OrdersCreated))
}

func TestCreateOrder_SavedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Oja Bag", 7000, 3)
	u := user("u1")

	addr, err := f.address.Create(ctx, u.UserID, &domain.AddressRequest{
		FullName: "Chidi Okeke", Phone: "+2348021234567", AddressLine1: "4 Aba Road", City: "Port Harcourt", State: "Rivers",
	})
	require.NoError(t, err)

	req := &domain.CreateOrderRequest{
		Email:     u.Email,
		AddressID: addr.ID,
		Items:     []domain.OrderLineRequest{{ProductID: p.ID, Quantity: 1}},
	}
	o, _, err := f.orders.Create(ctx, u, req)
	require.NoError(t, err)
	assert.Equal(t, "Port Harcourt", o.ShippingAddress.City)
	assert.Equal(t, "u1", o.UserID)

	_, _, err = f.orders.Create(ctx, guest(), req)
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address_id", verr.Field)
}

func TestOrder_GetAndTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Leather Slides", 11000, 5)
	o, _, err := f.orders.Create(ctx, guest(), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	got, err := f.orders.Get(ctx, guest(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)

	var nf *domain.ErrNotFound
	_, err = f.orders.Get(ctx, domain.Identity{SessionID: "guest_other"}, o.ID)
	assert.ErrorAs(t, err, &nf)

	tracked, err := f.orders.Track(ctx, o.OrderNumber, "ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, o.ID, tracked.ID)

	_, err = f.orders.Track(ctx, o.OrderNumber, "someone@example.com")
	assert.ErrorAs(t, err, &nf)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Native Wear", 20000, 10)
	for i := 0; i < 3; i++ {
		_, _, err := f.orders.Create(ctx, user("u1"), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)
	}
	_, _, err := f.orders.Create(ctx, user("u2"), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	mine, err := f.orders.ListMine(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.True(t, !mine[0].CreatedAt.Before(mine[1].CreatedAt))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Ofi Shawl", 6000, 5)
	o, _, err := f.orders.Create(ctx, guest(), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, o.ID, "lost")
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)

	_, err = f.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusDelivered)
	var conflict *domain.ErrConflict
	assert.ErrorAs(t, err, &conflict)

	updated, err := f.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)

	same, err := f.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, same.Status)

	assert.Equal(t, []string{events.OrderCreated, events.OrderStatusChanged}, f.events.seen())
}

func TestUpdateStatus_CancelPaidRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Coral Beads", 30000, 4)
	o, _, err := f.orders.Create(ctx, guest(), orderReq(domain.OrderLineRequest{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	f.gateway.tx = successfulTx(o)
	_, err = f.payments.Verify(ctx, &domain.VerifyPaymentRequest{TransactionID: "1001"})
	require.NoError(t, err)
	stored, _ := f.store.GetProduct(ctx, p.ID)
	require.Equal(t, 2, stored.StockQuantity)

	_, err = f.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	stored, _ = f.store.GetProduct(ctx, p.ID)
	assert.Equal(t, 4, stored.StockQuantity)
}
