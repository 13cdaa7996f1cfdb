// Package domain contains the core business entities and interfaces for the
// MB Way payment service.
package domain

import "errors"

// Domain errors represent business rule violations and gateway outcomes.
// These are used to communicate specific error conditions from the domain layer.
var (
	// ErrGatewayRejected is returned when the gateway synchronously refuses
	// a payment initiation. User-facing: surfaced as a checkout failure.
	ErrGatewayRejected = errors.New("payment initiation rejected by gateway")

	// ErrGatewayUnreachable is returned on network failure or timeout while
	// talking to the gateway. Transient: the caller decides whether to retry.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")

	// ErrUnknownTransaction is returned when a webhook or status query
	// references a transaction id with no stored record. Likely a forged or
	// stale callback; no payment attempt is touched.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrCapacityConflict is returned by the ticketing core when confirming
	// a payment would exceed the event's quota. Swallowed only at the
	// confirm transition, never elsewhere.
	ErrCapacityConflict = errors.New("event capacity exhausted")

	// ErrDuplicateTransaction is returned when a transaction id or payment
	// ref already has a record. The store's unique constraints back this.
	ErrDuplicateTransaction = errors.New("duplicate transaction record")

	// ErrInvalidInitiation is returned when the initiation request data is
	// invalid before any gateway call is made.
	ErrInvalidInitiation = errors.New("invalid initiation request")

	// ErrCoreAPIError is returned when the ticketing core's internal API
	// fails for reasons other than a capacity conflict.
	ErrCoreAPIError = errors.New("error communicating with ticketing core")
)

// PaymentError wraps a domain error with additional context for operators.
type PaymentError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PaymentError.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given error and message.
func NewPaymentError(err error, message, code string) *PaymentError {
	return &PaymentError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
