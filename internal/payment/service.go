// Package payment implements the core business logic for MB Way payment
// processing: initiation, status queries and webhook reconciliation.
// This is the service/use-case layer in Clean Architecture.
package payment

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ticketpt/mbway-payments/internal/domain"
	"go.uber.org/zap"
)

// phonePattern accepts national (912345678) and international
// (+351912345678 or 351#912345678) MB Way numbers.
var phonePattern = regexp.MustCompile(`^(\+?\d{1,3}#?)?\d{9}$`)

// Service orchestrates the payment gateways, the transaction record store
// and the ticketing core's payment attempt API.
type Service struct {
	transactions domain.TransactionStore
	attempts     domain.PaymentAttemptStore
	gateways     map[string]domain.PaymentGateway
	logger       *zap.Logger
}

// NewService creates a new payment service with the required dependencies.
// The gateways map is keyed by domain.GatewayIfThenPay / domain.GatewaySIBS.
func NewService(
	transactions domain.TransactionStore,
	attempts domain.PaymentAttemptStore,
	gateways map[string]domain.PaymentGateway,
	logger *zap.Logger,
) *Service {
	return &Service{
		transactions: transactions,
		attempts:     attempts,
		gateways:     gateways,
		logger:       logger,
	}
}

// Initiate handles the payment initiation flow:
// 1. Validates the request
// 2. Submits the create-payment call to the selected gateway
// 3. Persists exactly one transaction record on success
//
// A rejected or unreachable gateway leaves zero records behind.
func (s *Service) Initiate(ctx context.Context, req domain.InitiationRequest) (*domain.TransactionRecord, error) {
	if err := validateInitiation(req); err != nil {
		return nil, err
	}

	gw, err := s.gateway(req.Gateway)
	if err != nil {
		return nil, err
	}

	transactionID, err := gw.Initiate(ctx, req.Credentials, req)
	if err != nil {
		s.logger.Warn("gateway refused initiation",
			zap.String("gateway", req.Gateway),
			zap.String("order_ref", req.OrderRef),
			zap.Error(err))
		return nil, err
	}

	rec := &domain.TransactionRecord{
		TransactionID: transactionID,
		Gateway:       req.Gateway,
		Credentials:   req.Credentials,
		OrderRef:      req.OrderRef,
		PaymentRef:    req.PaymentRef,
	}
	if err := s.transactions.Create(ctx, rec); err != nil {
		// The gateway already accepted the payment at this point; losing the
		// record would orphan it, so this is a hard error for the caller.
		s.logger.Error("failed to persist transaction record",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("payment initiated",
		zap.String("gateway", req.Gateway),
		zap.String("transaction_id", transactionID),
		zap.String("order_ref", req.OrderRef),
		zap.String("amount", req.Amount()))

	return rec, nil
}

// Status performs a read-through status query for the transaction linked to
// a payment attempt. Used by the control panel and manual pollers.
func (s *Service) Status(ctx context.Context, paymentRef string) (domain.GatewayStatus, error) {
	rec, err := s.transactions.GetByPaymentRef(ctx, paymentRef)
	if err != nil {
		return domain.StatusUnknown, err
	}
	if rec == nil {
		return domain.StatusUnknown, domain.ErrUnknownTransaction
	}

	gw, err := s.gateway(rec.Gateway)
	if err != nil {
		return domain.StatusUnknown, err
	}
	return gw.QueryStatus(ctx, rec.Credentials, rec.TransactionID)
}

// Reconcile applies the gateway's view of a transaction to the linked
// payment attempt. Driven by webhook deliveries, which may repeat, so every
// path is idempotent:
// 1. Unknown transaction ids fail without touching any attempt.
// 2. An already-terminal attempt is a no-op.
// 3. Paid confirms the attempt; a capacity conflict on confirm is swallowed
//    (the payment already succeeded at the gateway, the quota problem is
//    handled by the core).
// 4. Cancelled fails the attempt.
// 5. Pending/Unknown take no action; a later delivery retries.
func (s *Service) Reconcile(ctx context.Context, transactionID string) (domain.ReconcileOutcome, error) {
	rec, err := s.transactions.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		s.logger.Warn("webhook referenced unknown transaction",
			zap.String("transaction_id", transactionID))
		return "", domain.ErrUnknownTransaction
	}

	state, err := s.attempts.State(ctx, rec.PaymentRef)
	if err != nil {
		return "", err
	}
	if state.Terminal() {
		return domain.OutcomeAlreadySettled, nil
	}

	gw, err := s.gateway(rec.Gateway)
	if err != nil {
		return "", err
	}
	status, err := gw.QueryStatus(ctx, rec.Credentials, rec.TransactionID)
	if err != nil {
		return "", err
	}

	switch status {
	case domain.StatusPaid:
		if err := s.attempts.Confirm(ctx, rec.PaymentRef); err != nil {
			if errors.Is(err, domain.ErrCapacityConflict) {
				s.logger.Warn("payment confirmed at gateway but event capacity exhausted",
					zap.String("transaction_id", transactionID),
					zap.String("payment_ref", rec.PaymentRef))
				return domain.OutcomeConfirmed, nil
			}
			return "", err
		}
		s.logger.Info("payment confirmed",
			zap.String("transaction_id", transactionID),
			zap.String("payment_ref", rec.PaymentRef))
		return domain.OutcomeConfirmed, nil

	case domain.StatusCancelled:
		if err := s.attempts.Fail(ctx, rec.PaymentRef); err != nil {
			return "", err
		}
		s.logger.Info("payment cancelled",
			zap.String("transaction_id", transactionID),
			zap.String("payment_ref", rec.PaymentRef))
		return domain.OutcomeFailed, nil

	default:
		// Pending or Unknown: neither is terminal, nothing to apply yet.
		return domain.OutcomePending, nil
	}
}

// DeleteOrderTransactions removes every transaction record owned by an
// order. Called by the platform when the order itself is deleted, so the
// records cascade with it.
func (s *Service) DeleteOrderTransactions(ctx context.Context, orderRef string) error {
	if err := s.transactions.DeleteByOrderRef(ctx, orderRef); err != nil {
		return err
	}
	s.logger.Info("order transactions deleted", zap.String("order_ref", orderRef))
	return nil
}

// gateway resolves a configured gateway by name.
func (s *Service) gateway(name string) (domain.PaymentGateway, error) {
	gw, ok := s.gateways[name]
	if !ok {
		return nil, domain.NewPaymentError(domain.ErrInvalidInitiation,
			fmt.Sprintf("gateway %q is not configured", name),
			"UNKNOWN_GATEWAY")
	}
	return gw, nil
}

// validateInitiation performs basic validation before any gateway call.
func validateInitiation(req domain.InitiationRequest) error {
	if req.Credentials.Key == "" || req.Credentials.Channel == "" {
		return domain.NewPaymentError(domain.ErrInvalidInitiation,
			"gateway credentials are required",
			"VALIDATION_ERROR")
	}
	if req.OrderRef == "" {
		return domain.NewPaymentError(domain.ErrInvalidInitiation,
			"order_ref is required",
			"VALIDATION_ERROR")
	}
	if req.PaymentRef == "" {
		return domain.NewPaymentError(domain.ErrInvalidInitiation,
			"payment_ref is required",
			"VALIDATION_ERROR")
	}
	if req.AmountCents <= 0 {
		return domain.NewPaymentError(domain.ErrInvalidInitiation,
			"amount must be greater than 0",
			"VALIDATION_ERROR")
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		return domain.NewPaymentError(domain.ErrInvalidInitiation,
			"phone_number is not a valid MB Way number",
			"VALIDATION_ERROR")
	}
	return nil
}
