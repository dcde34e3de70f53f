package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, zap.NewNop()), mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

var created = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func addressRows(id string, isDefault bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "full_name", "phone", "address_line1",
		"address_line2", "city", "state", "postal_code", "country", "is_default", "created_at", "updated_at"}).
		AddRow(id, "u1", "Ada Obi", "08031234567", "12 Admiralty Way",
			"", "Lekki", "Lagos", "", "Nigeria", isDefault, created, created)
}

func orderRows(status, paymentStatus string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "order_number", "user_id", "session_id", "email",
		"status", "payment_status", "payment_reference", "transaction_id",
		"subtotal", "shipping_fee", "total", "currency",
		"shipping_address", "notes", "idempotency_key", "paid_at", "created_at", "updated_at"}).
		AddRow("o1", "NS-20261014-ABC123", "u1", "", "ada@example.com",
			status, paymentStatus, "", "",
			16000.0, 2500.0, 18500.0, "NGN",
			[]byte(`{"full_name":"Ada Obi","phone":"08031234567"}`), "", "", nil, created, created)
}

// --- Addresses ---

func TestCreateAddress_FirstBecomesDefault(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT count(*) FROM (`)).WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(q(`UPDATE user_addresses SET is_default = false`)).WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(q(`INSERT INTO user_addresses`)).
		WithArgs("u1", "Ada Obi", "08031234567", "12 Admiralty Way", pgxmock.AnyArg(),
			"Lekki", "Lagos", pgxmock.AnyArg(), "Nigeria", true).
		WillReturnRows(addressRows("a1", true))
	mock.ExpectCommit()

	a, err := s.CreateAddress(context.Background(), &domain.Address{
		UserID: "u1", FullName: "Ada Obi", Phone: "08031234567",
		AddressLine1: "12 Admiralty Way", City: "Lekki", State: "Lagos", Country: "Nigeria",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.True(t, a.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAddress_LaterAddressKeepsDefault(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`FOR UPDATE`)).WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(q(`INSERT INTO user_addresses`)).
		WithArgs("u1", "Ada Obi", "08031234567", "12 Admiralty Way", pgxmock.AnyArg(),
			"Lekki", "Lagos", pgxmock.AnyArg(), "Nigeria", false).
		WillReturnRows(addressRows("a3", false))
	mock.ExpectCommit()

	a, err := s.CreateAddress(context.Background(), &domain.Address{
		UserID: "u1", FullName: "Ada Obi", Phone: "08031234567",
		AddressLine1: "12 Admiralty Way", City: "Lekki", State: "Lagos", Country: "Nigeria",
	})
	require.NoError(t, err)
	assert.False(t, a.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefaultAddress_ClearsOthers(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`UPDATE user_addresses SET is_default = true`)).WithArgs("a2", "u1").
		WillReturnRows(addressRows("a2", true))
	mock.ExpectExec(q(`WHERE user_id = $1 AND id <> $2 AND is_default`)).WithArgs("u1", "a2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := s.SetDefaultAddress(context.Background(), "u1", "a2")
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefaultAddress_OtherUserRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`UPDATE user_addresses SET is_default = true`)).WithArgs("a2", "intruder").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.SetDefaultAddress(context.Background(), "intruder", "a2")
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "address", nf.Resource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAddress_PromotesOldest(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`DELETE FROM user_addresses`)).WithArgs("a1", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"is_default"}).AddRow(true))
	mock.ExpectExec(q(`ORDER BY created_at ASC LIMIT 1`)).WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAddress(context.Background(), "u1", "a1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAddress_NonDefaultPromotesNothing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`DELETE FROM user_addresses`)).WithArgs("a3", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"is_default"}).AddRow(false))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAddress(context.Background(), "u1", "a3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Orders ---

func newOrder() *domain.Order {
	return &domain.Order{
		OrderNumber:     "NS-20261014-ABC123",
		UserID:          "u1",
		Email:           "ada@example.com",
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        16000,
		ShippingFee:     2500,
		Total:           18500,
		Currency:        "NGN",
		ShippingAddress: &domain.ShippingAddress{FullName: "Ada Obi", Phone: "08031234567"},
		Items: []domain.OrderItem{
			{ProductID: "p1", ProductName: "Ankara Tote", Price: 8000, Quantity: 1},
			{ProductID: "p2", ProductName: "Adire Scarf", Price: 8000, Quantity: 1, Color: "indigo"},
		},
	}
}

func TestCreateOrder_InsertsItemsInOneTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO orders`)).
		WillReturnRows(orderRows(domain.OrderStatusPending, domain.PaymentStatusPending))
	mock.ExpectQuery(q(`INSERT INTO order_items`)).
		WithArgs("o1", "p1", "Ankara Tote", 8000.0, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("i1"))
	mock.ExpectQuery(q(`INSERT INTO order_items`)).
		WithArgs("o1", "p2", "Adire Scarf", 8000.0, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("i2"))
	mock.ExpectCommit()

	o, err := s.CreateOrder(context.Background(), newOrder())
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "i2", o.Items[1].ID)
	assert.Equal(t, "o1", o.Items[1].OrderID)
	assert.Equal(t, "indigo", o.Items[1].Color)
	require.NotNil(t, o.ShippingAddress)
	assert.Equal(t, "Ada Obi", o.ShippingAddress.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_ItemFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO orders`)).
		WillReturnRows(orderRows(domain.OrderStatusPending, domain.PaymentStatusPending))
	mock.ExpectQuery(q(`INSERT INTO order_items`)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("i1"))
	mock.ExpectQuery(q(`INSERT INTO order_items`)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "product does not exist"})
	mock.ExpectRollback()

	_, err := s.CreateOrder(context.Background(), newOrder())
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reference", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleOrder_GuardsOnOpenOrders(t *testing.T) {
	s, mock := newMockStore(t)
	paid := domain.PaymentStatusPaid

	mock.ExpectQuery(q(`AND payment_status <> $7 AND status <> $8`)).
		WithArgs("o1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			domain.PaymentStatusPaid, domain.OrderStatusCancelled).
		WillReturnRows(orderRows(domain.OrderStatusProcessing, domain.PaymentStatusPaid))
	mock.ExpectQuery(q(`FROM order_items`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "product_id", "product_name",
			"price", "quantity", "size", "color"}).
			AddRow("i1", "o1", "p1", "Ankara Tote", 8000.0, 2, "", ""))

	o, applied, err := s.SettleOrder(context.Background(), "o1", domain.OrderUpdate{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	require.Len(t, o.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleOrder_LostRaceReturnsStored(t *testing.T) {
	s, mock := newMockStore(t)
	paid := domain.PaymentStatusPaid

	mock.ExpectQuery(q(`AND payment_status <> $7 AND status <> $8`)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(q(`FROM orders WHERE id = $1`)).WithArgs("o1").
		WillReturnRows(orderRows(domain.OrderStatusProcessing, domain.PaymentStatusPaid))
	mock.ExpectQuery(q(`FROM order_items`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "product_id", "product_name",
			"price", "quantity", "size", "color"}))

	o, applied, err := s.SettleOrder(context.Background(), "o1", domain.OrderUpdate{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.DeleteAddress(context.Background(), "u1", "a1")
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "postgres/DeleteAddress", ext.Service)
	assert.NoError(t, mock.ExpectationsWereMet())
}
