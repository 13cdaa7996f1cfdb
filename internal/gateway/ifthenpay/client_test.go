package ifthenpay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticketpt/mbway-payments/internal/domain"
	"go.uber.org/zap"
)

var testCreds = domain.GatewayCredentials{Key: "ABC-123456", Channel: "03"}

func testRequest() domain.InitiationRequest {
	return domain.InitiationRequest{
		Gateway:     domain.GatewayIfThenPay,
		Credentials: testCreds,
		OrderRef:    "ORD-42",
		PaymentRef:  "PAY-42",
		AmountCents: 1000,
		PhoneNumber: "+351912345678",
		Description: "Festival ticket",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0, zap.NewNop())
}

func TestInitiateSuccess(t *testing.T) {
	var gotForm map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, endpointRequirePayment, r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"MbWayKey":   r.PostFormValue("MbWayKey"),
			"Canal":      r.PostFormValue("Canal"),
			"Referencia": r.PostFormValue("Referencia"),
			"valor":      r.PostFormValue("valor"),
			"nrtlm":      r.PostFormValue("nrtlm"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Estado":"000","IdPedido":"A1B2"}`))
	})

	tid, err := client.Initiate(context.Background(), testCreds, testRequest())
	require.NoError(t, err)
	require.Equal(t, "A1B2", tid)
	require.Equal(t, "ABC-123456", gotForm["MbWayKey"])
	require.Equal(t, "03", gotForm["Canal"])
	require.Equal(t, "ORD-42", gotForm["Referencia"])
	require.Equal(t, "10.00", gotForm["valor"])
	require.Equal(t, "+351912345678", gotForm["nrtlm"])
}

func TestInitiateGatewayRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Estado":"030","MsgDescricao":"invalid key"}`))
	})

	_, err := client.Initiate(context.Background(), testCreds, testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestInitiateHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Initiate(context.Background(), testCreds, testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestInitiateNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse all connections
	client := NewClient(srv.URL, 0, zap.NewNop())

	_, err := client.Initiate(context.Background(), testCreds, testRequest())
	require.ErrorIs(t, err, domain.ErrGatewayUnreachable)

	var paymentErr *domain.PaymentError
	require.True(t, errors.As(err, &paymentErr))
	require.Equal(t, "GATEWAY_UNREACHABLE", paymentErr.Code)
}

func TestQueryStatusPaid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointRequireState, r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "A1B2", r.PostFormValue("idspagamento"))
		w.Write([]byte(`{"Estado":"000","EstadoPedidos":[{"IdPedido":"A1B2","Estado":"000"}]}`))
	})

	status, err := client.QueryStatus(context.Background(), testCreds, "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, status)
}

func TestQueryStatusMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})

	status, err := client.QueryStatus(context.Background(), testCreds, "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnknown, status)
}

func TestQueryStatusNon200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	status, err := client.QueryStatus(context.Background(), testCreds, "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnknown, status)
}

func TestQueryStatusEmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Estado":"000","EstadoPedidos":[]}`))
	})

	status, err := client.QueryStatus(context.Background(), testCreds, "A1B2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnknown, status)
}

func TestQueryStatusNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, 0, zap.NewNop())

	_, err := client.QueryStatus(context.Background(), testCreds, "A1B2")
	require.ErrorIs(t, err, domain.ErrGatewayUnreachable)
}

func TestMapStatusTable(t *testing.T) {
	cases := map[string]domain.GatewayStatus{
		"000":    domain.StatusPaid,
		"123":    domain.StatusCancelled,
		"020":    domain.StatusPending,
		"101":    domain.StatusPending,
		"122":    domain.StatusPending,
		"999":    domain.StatusUnknown,
		"":       domain.StatusUnknown,
		"paid":   domain.StatusUnknown,
		"00":     domain.StatusUnknown,
		"0000":   domain.StatusUnknown,
		"  000 ": domain.StatusUnknown,
	}
	for code, want := range cases {
		require.Equal(t, want, MapStatus(code), "code %q", code)
	}
}
