// Package domain defines the storefront entities: catalog, carts, orders,
// payments and accounts. It has no dependencies on transport or storage.
package domain

import "fmt"

// Error types for consistent error handling across the API.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientStock indicates a product cannot cover the requested quantity.
type ErrInsufficientStock struct {
	ProductID string
	Available int
	Requested int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d requested=%d", e.ProductID, e.Available, e.Requested)
}

// ErrPaymentRejected indicates a gateway transaction does not settle the order.
type ErrPaymentRejected struct {
	Reference string
	Reason    string
}

func (e *ErrPaymentRejected) Error() string {
	return fmt.Sprintf("payment %s rejected: %s", e.Reference, e.Reason)
}

// ErrDuplicate indicates a duplicate operation (idempotency check).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate operation: %s", e.Key)
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates missing, invalid or expired credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates the request conflicts with current state
// (e.g. an illegal order status transition).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
