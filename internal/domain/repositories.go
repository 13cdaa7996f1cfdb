// Package domain contains the core business entities and interfaces for the
// MB Way payment service.
package domain

import "context"

// TransactionStore persists one record per initiated payment attempt.
// This is a "port" in hexagonal architecture - the domain defines what it
// needs, and infrastructure provides the implementation.
type TransactionStore interface {
	// Create inserts a new record. Returns ErrDuplicateTransaction if the
	// transaction id or payment ref is already recorded.
	Create(ctx context.Context, rec *TransactionRecord) error

	// GetByTransactionID looks up a record by its gateway-issued id.
	// Returns (nil, nil) when no record exists.
	GetByTransactionID(ctx context.Context, transactionID string) (*TransactionRecord, error)

	// GetByPaymentRef looks up a record by the ticketing core's payment ref.
	// Returns (nil, nil) when no record exists.
	GetByPaymentRef(ctx context.Context, paymentRef string) (*TransactionRecord, error)

	// DeleteByOrderRef removes all records owned by an order. Called by the
	// platform when the order itself is deleted (cascade).
	DeleteByOrderRef(ctx context.Context, orderRef string) error
}

// PaymentGateway abstracts one MB Way gateway (IfThenPay or SIBS).
type PaymentGateway interface {
	// Initiate submits a create-payment request and returns the
	// gateway-assigned transaction id. Returns ErrGatewayRejected when the
	// gateway refuses the request and ErrGatewayUnreachable on
	// network failure or timeout.
	Initiate(ctx context.Context, creds GatewayCredentials, req InitiationRequest) (string, error)

	// QueryStatus asks the gateway for the current status of a transaction.
	// Unrecognized codes, non-200 responses and malformed bodies map to
	// StatusUnknown; only network failures produce an error.
	QueryStatus(ctx context.Context, creds GatewayCredentials, transactionID string) (GatewayStatus, error)
}

// PaymentAttemptStore is the ticketing core's payment attempt API, consumed
// but not owned by this service.
type PaymentAttemptStore interface {
	// State reads the current state of a payment attempt.
	State(ctx context.Context, paymentRef string) (AttemptState, error)

	// Confirm transitions the attempt to confirmed. Returns
	// ErrCapacityConflict when the event's quota is exhausted; the
	// transition is atomic and idempotent on the core's side.
	Confirm(ctx context.Context, paymentRef string) error

	// Fail transitions the attempt to failed.
	Fail(ctx context.Context, paymentRef string) error
}
