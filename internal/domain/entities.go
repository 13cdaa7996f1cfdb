// Package domain contains the core business entities and interfaces for the
// MB Way payment service. This is the innermost layer of the Clean
// Architecture - it has no dependencies on external frameworks or
// infrastructure except the persistence tags on the transaction record.
package domain

import (
	"fmt"
	"time"
)

// Gateway identifiers. A deployment may route payments through either
// gateway; the transaction record remembers which one issued the id.
const (
	GatewayIfThenPay = "ifthenpay"
	GatewaySIBS      = "sibs"
)

// GatewayCredentials selects the merchant account billed for one
// transaction. A single deployment may juggle several credential sets
// (one per event), so these travel with every gateway call instead of
// living in global config.
type GatewayCredentials struct {
	// Key is the merchant key issued by the gateway (the MB Way key for
	// IfThenPay, the terminal key for SIBS).
	Key string `json:"key"`
	// Channel is the gateway sub-channel/account, e.g. "03".
	Channel string `json:"channel"`
}

// InitiationRequest carries everything needed to create a payment at the
// gateway.
type InitiationRequest struct {
	Gateway     string             `json:"gateway"`
	Credentials GatewayCredentials `json:"credentials"`
	OrderRef    string             `json:"order_ref"`   // owning order in the ticketing core
	PaymentRef  string             `json:"payment_ref"` // payment attempt in the ticketing core
	AmountCents int64              `json:"amount_cents"`
	PhoneNumber string             `json:"phone_number"` // payer's MB Way mobile number
	Email       string             `json:"email"`        // optional
	Description string             `json:"description"`  // optional, shown in the payer's app
}

// Amount renders the amount the way the gateways expect it: a fixed-point
// decimal string with exactly two fraction digits.
func (r InitiationRequest) Amount() string {
	return FormatAmount(r.AmountCents)
}

// FormatAmount converts an amount in cents to the gateway wire format,
// e.g. 1000 -> "10.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// TransactionRecord links a gateway-issued transaction id to the ticketing
// core's order and payment attempt, together with the credentials used to
// create it. Created exactly once, when the gateway accepts an initiation
// request; never mutated afterwards.
type TransactionRecord struct {
	ID            int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID string             `gorm:"type:varchar(190);uniqueIndex;not null" json:"transaction_id"`
	Gateway       string             `gorm:"type:varchar(20);not null" json:"gateway"`
	Credentials   GatewayCredentials `gorm:"embedded;embeddedPrefix:credential_" json:"credentials"`
	OrderRef      string             `gorm:"type:varchar(64);index;not null" json:"order_ref"`
	PaymentRef    string             `gorm:"type:varchar(64);uniqueIndex" json:"payment_ref"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

func (TransactionRecord) TableName() string {
	return "mbway_transactions"
}

// GatewayStatus is the logical payment status after mapping the gateway's
// raw status vocabulary.
type GatewayStatus string

const (
	StatusPaid      GatewayStatus = "paid"
	StatusPending   GatewayStatus = "pending"
	StatusCancelled GatewayStatus = "cancelled"
	StatusUnknown   GatewayStatus = "unknown"
)

// AttemptState is the ticketing core's view of one payment attempt. This
// service drives transitions on it but does not own its storage.
type AttemptState string

const (
	AttemptPrepared  AttemptState = "prepared"
	AttemptPending   AttemptState = "pending"
	AttemptConfirmed AttemptState = "confirmed"
	AttemptFailed    AttemptState = "failed"
)

// Terminal reports whether the attempt can no longer change state.
func (s AttemptState) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptFailed
}

// ReconcileOutcome describes what a reconciliation pass did.
type ReconcileOutcome string

const (
	// OutcomeConfirmed means the payment attempt was confirmed on this pass.
	OutcomeConfirmed ReconcileOutcome = "confirmed"
	// OutcomeFailed means the payment attempt was marked failed on this pass.
	OutcomeFailed ReconcileOutcome = "failed"
	// OutcomePending means the gateway has not settled yet; no action taken.
	OutcomePending ReconcileOutcome = "pending"
	// OutcomeAlreadySettled means the attempt was already terminal and the
	// call was an idempotent no-op (duplicate webhook delivery).
	OutcomeAlreadySettled ReconcileOutcome = "already_settled"
)
