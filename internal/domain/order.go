package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Orders
// ============================================================

// Order statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ShippingAddress is the address snapshot stored on an order.
type ShippingAddress struct {
	FullName     string `json:"full_name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,ngphone"`
	AddressLine1 string `json:"address_line1" validate:"required,max=200"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code,omitempty" validate:"max=20"`
	Country      string `json:"country,omitempty" validate:"max=60"`
}

// Order is a placed order.
type Order struct {
	ID               string           `json:"id"`
	OrderNumber      string           `json:"order_number"`
	UserID           string           `json:"user_id,omitempty"`
	SessionID        string           `json:"session_id,omitempty"`
	Email            string           `json:"email"`
	Status           string           `json:"status"`
	PaymentStatus    string           `json:"payment_status"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	TransactionID    string           `json:"transaction_id,omitempty"`
	Subtotal         float64          `json:"subtotal"`
	ShippingFee      float64          `json:"shipping_fee"`
	Total            float64          `json:"total"`
	Currency         string           `json:"currency"`
	ShippingAddress  *ShippingAddress `json:"shipping_address,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	IdempotencyKey   string           `json:"-"`
	Items            []OrderItem      `json:"items,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Owner returns the cart owner the order was placed by.
func (o *Order) Owner() CartOwner {
	if o.UserID != "" {
		return CartOwner{UserID: o.UserID}
	}
	return CartOwner{SessionID: o.SessionID}
}

// OwnedBy reports whether id placed the order.
func (o *Order) OwnedBy(id Identity) bool {
	if o.UserID != "" {
		return id.UserID == o.UserID
	}
	return o.SessionID != "" && id.SessionID == o.SessionID
}

// PaymentOutcome is what a payment verification discloses to a caller
// who did not place the order.
type PaymentOutcome struct {
	OrderNumber   string  `json:"order_number"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
}

func (o *Order) Outcome() PaymentOutcome {
	return PaymentOutcome{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Currency:      o.Currency,
	}
}

// OrderItem is a priced line snapshot of an order.
type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Size        string  `json:"size,omitempty"`
	Color       string  `json:"color,omitempty"`
}

// OrderLineRequest is one requested line of a new order.
type OrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
	Size      string `json:"size" validate:"max=20"`
	Color     string `json:"color" validate:"max=30"`
}

// CreateOrderRequest is the body of POST /api/orders. When Items is empty
// the caller's cart is ordered. A saved AddressID replaces ShippingAddress
// for signed-in users.
type CreateOrderRequest struct {
	Email           string             `json:"email" validate:"required,email"`
	ShippingAddress *ShippingAddress   `json:"shipping_address" validate:"required_without=AddressID"`
	AddressID       string             `json:"address_id" validate:"omitempty,uuid"`
	Items           []OrderLineRequest `json:"items" validate:"omitempty,max=50,dive"`
	Notes           string             `json:"notes" validate:"max=500"`
	IdempotencyKey  string             `json:"-"`
}

// UpdateOrderStatusRequest is the body of PATCH /api/admin/orders/{id}/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID        string
	Status        string
	PaymentStatus string
	Page          int
	PageSize      int
}

// OrderUpdate is a partial update applied to an order row.
type OrderUpdate struct {
	Status           *string
	PaymentStatus    *string
	PaymentReference *string
	TransactionID    *string
	PaidAt           *time.Time
}

// NewOrderNumber returns a human-friendly order number such as
// NS-20261014-3F9A2C.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("NS-%s-%s", now.UTC().Format("20060102"), suffix)
}
