package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticketpt/mbway-payments/internal/domain"
	"go.uber.org/zap"
)

// fakeStore is an in-memory domain.TransactionStore.
type fakeStore struct {
	records []*domain.TransactionRecord
	failOn  error
}

func (s *fakeStore) Create(ctx context.Context, rec *domain.TransactionRecord) error {
	if s.failOn != nil {
		return s.failOn
	}
	for _, r := range s.records {
		if r.TransactionID == rec.TransactionID || r.PaymentRef == rec.PaymentRef {
			return domain.ErrDuplicateTransaction
		}
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) GetByTransactionID(ctx context.Context, tid string) (*domain.TransactionRecord, error) {
	for _, r := range s.records {
		if r.TransactionID == tid {
			return r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetByPaymentRef(ctx context.Context, ref string) (*domain.TransactionRecord, error) {
	for _, r := range s.records {
		if r.PaymentRef == ref {
			return r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) DeleteByOrderRef(ctx context.Context, orderRef string) error {
	kept := s.records[:0]
	for _, r := range s.records {
		if r.OrderRef != orderRef {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

// fakeAttempts is an in-memory domain.PaymentAttemptStore that counts
// transitions so idempotence is observable.
type fakeAttempts struct {
	states       map[string]domain.AttemptState
	confirms     int
	fails        int
	confirmError error
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{states: map[string]domain.AttemptState{}}
}

func (a *fakeAttempts) State(ctx context.Context, ref string) (domain.AttemptState, error) {
	if st, ok := a.states[ref]; ok {
		return st, nil
	}
	return domain.AttemptPending, nil
}

func (a *fakeAttempts) Confirm(ctx context.Context, ref string) error {
	a.confirms++
	if a.confirmError != nil {
		return a.confirmError
	}
	a.states[ref] = domain.AttemptConfirmed
	return nil
}

func (a *fakeAttempts) Fail(ctx context.Context, ref string) error {
	a.fails++
	a.states[ref] = domain.AttemptFailed
	return nil
}

// fakeGateway is a scripted domain.PaymentGateway.
type fakeGateway struct {
	transactionID string
	initiateErr   error
	status        domain.GatewayStatus
	statusErr     error
	initiations   int
	queries       int
}

func (g *fakeGateway) Initiate(ctx context.Context, creds domain.GatewayCredentials, req domain.InitiationRequest) (string, error) {
	g.initiations++
	if g.initiateErr != nil {
		return "", g.initiateErr
	}
	return g.transactionID, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, creds domain.GatewayCredentials, tid string) (domain.GatewayStatus, error) {
	g.queries++
	if g.statusErr != nil {
		return domain.StatusUnknown, g.statusErr
	}
	return g.status, nil
}

func newTestService(gw *fakeGateway) (*Service, *fakeStore, *fakeAttempts) {
	store := &fakeStore{}
	attempts := newFakeAttempts()
	svc := NewService(store, attempts,
		map[string]domain.PaymentGateway{domain.GatewayIfThenPay: gw},
		zap.NewNop())
	return svc, store, attempts
}

func validRequest() domain.InitiationRequest {
	return domain.InitiationRequest{
		Gateway:     domain.GatewayIfThenPay,
		Credentials: domain.GatewayCredentials{Key: "K", Channel: "03"},
		OrderRef:    "ORD-1",
		PaymentRef:  "PAY-1",
		AmountCents: 1000,
		PhoneNumber: "+351912345678",
	}
}

func TestInitiateCreatesExactlyOneRecord(t *testing.T) {
	gw := &fakeGateway{transactionID: "A1B2"}
	svc, store, _ := newTestService(gw)

	rec, err := svc.Initiate(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, "A1B2", rec.TransactionID)
	require.Equal(t, "ORD-1", rec.OrderRef)
	require.Equal(t, "PAY-1", rec.PaymentRef)
	require.Len(t, store.records, 1)
}

func TestInitiateRejectionLeavesNoRecord(t *testing.T) {
	gw := &fakeGateway{initiateErr: domain.ErrGatewayRejected}
	svc, store, _ := newTestService(gw)

	_, err := svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrGatewayRejected)
	require.Empty(t, store.records)
}

func TestInitiateUnreachableLeavesNoRecord(t *testing.T) {
	gw := &fakeGateway{initiateErr: domain.ErrGatewayUnreachable}
	svc, store, _ := newTestService(gw)

	_, err := svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnreachable)
	require.Empty(t, store.records)
}

func TestInitiateValidation(t *testing.T) {
	gw := &fakeGateway{transactionID: "A1B2"}
	svc, _, _ := newTestService(gw)

	cases := []func(*domain.InitiationRequest){
		func(r *domain.InitiationRequest) { r.Credentials.Key = "" },
		func(r *domain.InitiationRequest) { r.Credentials.Channel = "" },
		func(r *domain.InitiationRequest) { r.OrderRef = "" },
		func(r *domain.InitiationRequest) { r.PaymentRef = "" },
		func(r *domain.InitiationRequest) { r.AmountCents = 0 },
		func(r *domain.InitiationRequest) { r.AmountCents = -500 },
		func(r *domain.InitiationRequest) { r.PhoneNumber = "not-a-phone" },
		func(r *domain.InitiationRequest) { r.PhoneNumber = "" },
	}
	for i, mutate := range cases {
		req := validRequest()
		mutate(&req)
		_, err := svc.Initiate(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrInvalidInitiation, "case %d", i)
	}
	require.Zero(t, gw.initiations, "validation failures must not reach the gateway")
}

func TestInitiateUnknownGateway(t *testing.T) {
	svc, store, _ := newTestService(&fakeGateway{transactionID: "A1B2"})

	req := validRequest()
	req.Gateway = "multibanco"
	_, err := svc.Initiate(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidInitiation)
	require.Empty(t, store.records)
}

func seedRecord(t *testing.T, store *fakeStore) *domain.TransactionRecord {
	t.Helper()
	rec := &domain.TransactionRecord{
		TransactionID: "A1B2",
		Gateway:       domain.GatewayIfThenPay,
		Credentials:   domain.GatewayCredentials{Key: "K", Channel: "03"},
		OrderRef:      "ORD-1",
		PaymentRef:    "PAY-1",
	}
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func TestReconcilePaidConfirmsOnce(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusPaid}
	svc, store, attempts := newTestService(gw)
	seedRecord(t, store)

	outcome, err := svc.Reconcile(context.Background(), "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmed, outcome)
	require.Equal(t, 1, attempts.confirms)

	// Duplicate webhook delivery: terminal-state guard makes it a no-op.
	outcome, err = svc.Reconcile(context.Background(), "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAlreadySettled, outcome)
	require.Equal(t, 1, attempts.confirms, "confirm must happen exactly once")
	require.Equal(t, 1, gw.queries, "settled transactions are not re-queried")
}

func TestReconcileCancelledFailsAttempt(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusCancelled}
	svc, store, attempts := newTestService(gw)
	seedRecord(t, store)

	outcome, err := svc.Reconcile(context.Background(), "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFailed, outcome)
	require.Equal(t, 1, attempts.fails)
	require.Equal(t, domain.AttemptFailed, attempts.states["PAY-1"])
}

func TestReconcileUnknownTransaction(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusPaid}
	svc, _, attempts := newTestService(gw)

	_, err := svc.Reconcile(context.Background(), "NOPE")
	require.ErrorIs(t, err, domain.ErrUnknownTransaction)
	require.Zero(t, attempts.confirms)
	require.Zero(t, attempts.fails)
	require.Zero(t, gw.queries, "unknown ids must not trigger gateway calls")
}

func TestReconcilePendingTakesNoAction(t *testing.T) {
	for _, status := range []domain.GatewayStatus{domain.StatusPending, domain.StatusUnknown} {
		gw := &fakeGateway{status: status}
		svc, store, attempts := newTestService(gw)
		seedRecord(t, store)

		outcome, err := svc.Reconcile(context.Background(), "A1B2")
		require.NoError(t, err)
		require.Equal(t, domain.OutcomePending, outcome)
		require.Zero(t, attempts.confirms)
		require.Zero(t, attempts.fails)

		// Still reconcilable later: a second pass with a settled gateway
		// status applies the transition.
		gw.status = domain.StatusPaid
		outcome, err = svc.Reconcile(context.Background(), "A1B2")
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeConfirmed, outcome)
	}
}

func TestReconcileSwallowsCapacityConflict(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusPaid}
	svc, store, attempts := newTestService(gw)
	seedRecord(t, store)
	attempts.confirmError = domain.ErrCapacityConflict

	outcome, err := svc.Reconcile(context.Background(), "A1B2")
	require.NoError(t, err, "quota exhaustion is not a reconciliation error")
	require.Equal(t, domain.OutcomeConfirmed, outcome)
}

func TestReconcilePropagatesOtherConfirmErrors(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusPaid}
	svc, store, attempts := newTestService(gw)
	seedRecord(t, store)
	attempts.confirmError = errors.New("core is down")

	_, err := svc.Reconcile(context.Background(), "A1B2")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrCapacityConflict)
}

func TestReconcileGatewayUnreachable(t *testing.T) {
	gw := &fakeGateway{statusErr: domain.ErrGatewayUnreachable}
	svc, store, attempts := newTestService(gw)
	seedRecord(t, store)

	_, err := svc.Reconcile(context.Background(), "A1B2")
	require.ErrorIs(t, err, domain.ErrGatewayUnreachable)
	require.Zero(t, attempts.confirms)
	require.Zero(t, attempts.fails)
}

func TestStatusReadThrough(t *testing.T) {
	gw := &fakeGateway{status: domain.StatusPending}
	svc, store, _ := newTestService(gw)
	seedRecord(t, store)

	status, err := svc.Status(context.Background(), "PAY-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, status)

	_, err = svc.Status(context.Background(), "PAY-404")
	require.ErrorIs(t, err, domain.ErrUnknownTransaction)
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		1000:   "10.00",
		1:      "0.01",
		99:     "0.99",
		100:    "1.00",
		123456: "1234.56",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		require.Equal(t, want, domain.FormatAmount(cents))
	}
}
