package domain

import "time"

// ============================================================
// Payments: Flutterwave hosted checkout
// ============================================================

// PaymentCustomer is the payer block sent to the gateway.
type PaymentCustomer struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

// PaymentCustomizations brands the hosted checkout page.
type PaymentCustomizations struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// PaymentInitRequest is what the gateway needs to mint a checkout link.
type PaymentInitRequest struct {
	TxRef          string                `json:"tx_ref"`
	Amount         float64               `json:"amount"`
	Currency       string                `json:"currency"`
	RedirectURL    string                `json:"redirect_url"`
	Customer       PaymentCustomer       `json:"customer"`
	Customizations PaymentCustomizations `json:"customizations"`
	Meta           map[string]string     `json:"meta,omitempty"`
}

// PaymentLink is the gateway's hosted checkout link.
type PaymentLink struct {
	Link string `json:"link"`
}

// GatewayTransaction is a verified gateway transaction.
type GatewayTransaction struct {
	ID            int64     `json:"id"`
	TxRef         string    `json:"tx_ref"`
	FlwRef        string    `json:"flw_ref"`
	Amount        float64   `json:"amount"`
	ChargedAmount float64   `json:"charged_amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentType   string    `json:"payment_type"`
	CustomerEmail string    `json:"customer_email"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionSuccessful is the gateway status of a settled charge.
const TransactionSuccessful = "successful"

// InitializePaymentRequest is the body of POST /api/payments/initialize.
type InitializePaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

// InitializePaymentResponse is returned by POST /api/payments/initialize.
type InitializePaymentResponse struct {
	OrderID     string  `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	TxRef       string  `json:"tx_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Link        string  `json:"payment_link"`
}

// VerifyPaymentRequest is the body of POST /api/payments/verify. Either
// the gateway transaction id or the tx_ref is required.
type VerifyPaymentRequest struct {
	TransactionID string `json:"transaction_id" validate:"required_without=TxRef"`
	TxRef         string `json:"tx_ref" validate:"required_without=TransactionID"`
}

// WebhookEvent is the Flutterwave webhook envelope.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64   `json:"id"`
		TxRef  string  `json:"tx_ref"`
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	} `json:"data"`
}
