// Package ifthenpay implements the domain.PaymentGateway interface against
// the IfThenPay MB Way HTTP API.
package ifthenpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ticketpt/mbway-payments/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultEntrypoint is the production MB Way endpoint.
	DefaultEntrypoint = "https://mbway.ifthenpay.com/IfthenPayMBW.asmx"

	endpointRequirePayment = "/SetPedidoJSON"
	endpointRequireState   = "/EstadoPedidosJSON"

	// Gateway status codes. "000" doubles as the request-accepted code on
	// initiation and the paid code on status queries.
	statePaid      = "000"
	stateCancelled = "123"
	stateDeclined  = "020"
	stateExpired   = "101"
	statePending   = "122"
)

// statusTable maps the documented IfThenPay codes to logical statuses.
// Declined/expired/pending are deliberately collapsed into pending: the
// gateway does not guarantee the distinction and no expiry timer is enforced
// here. Undocumented codes are not in the table and map to unknown.
var statusTable = map[string]domain.GatewayStatus{
	statePaid:      domain.StatusPaid,
	stateCancelled: domain.StatusCancelled,
	stateDeclined:  domain.StatusPending,
	stateExpired:   domain.StatusPending,
	statePending:   domain.StatusPending,
}

// MapStatus translates a raw gateway code to a logical status. Total:
// every input maps to exactly one of the four values.
func MapStatus(code string) domain.GatewayStatus {
	if s, ok := statusTable[code]; ok {
		return s
	}
	return domain.StatusUnknown
}

// Client talks to the IfThenPay MB Way API. Credentials are per-call, not
// per-client: one client instance serves every merchant account.
type Client struct {
	entrypoint string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an IfThenPay client. An empty entrypoint selects the
// production endpoint.
func NewClient(entrypoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if entrypoint == "" {
		entrypoint = DefaultEntrypoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		entrypoint: entrypoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// requirePaymentResponse is the JSON body of a SetPedidoJSON call.
type requirePaymentResponse struct {
	Estado   string `json:"Estado"`
	IDPedido string `json:"IdPedido"`
	MsgDescr string `json:"MsgDescricao"`
}

// Initiate submits a create-payment request. On success it returns the
// gateway-assigned transaction id; it never persists anything itself.
func (c *Client) Initiate(ctx context.Context, creds domain.GatewayCredentials, req domain.InitiationRequest) (string, error) {
	form := url.Values{
		"MbWayKey":   {creds.Key},
		"Canal":      {creds.Channel},
		"Referencia": {req.OrderRef},
		"valor":      {req.Amount()},
		"nrtlm":      {req.PhoneNumber},
		"email":      {req.Email},
		"descricao":  {req.Description},
	}

	body, status, err := c.postForm(ctx, endpointRequirePayment, form)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", domain.NewPaymentError(domain.ErrGatewayRejected,
			fmt.Sprintf("ifthenpay returned HTTP %d", status),
			"GATEWAY_HTTP_ERROR")
	}

	var resp requirePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewPaymentError(domain.ErrGatewayRejected,
			"ifthenpay returned a malformed initiation response",
			"GATEWAY_BAD_RESPONSE")
	}
	if resp.Estado != statePaid || resp.IDPedido == "" {
		c.logger.Warn("ifthenpay rejected initiation",
			zap.String("estado", resp.Estado),
			zap.String("order_ref", req.OrderRef))
		return "", domain.NewPaymentError(domain.ErrGatewayRejected,
			fmt.Sprintf("ifthenpay rejected initiation with code %q", resp.Estado),
			"GATEWAY_REJECTED")
	}

	return resp.IDPedido, nil
}

// requireStateResponse is the JSON body of an EstadoPedidosJSON call. The
// gateway reports one entry per queried transaction id.
type requireStateResponse struct {
	Estado        string `json:"Estado"`
	EstadoPedidos []struct {
		IDPedido string `json:"IdPedido"`
		Estado   string `json:"Estado"`
	} `json:"EstadoPedidos"`
}

// QueryStatus asks the gateway for the current status of a transaction.
// A single request/response pair; no retries.
func (c *Client) QueryStatus(ctx context.Context, creds domain.GatewayCredentials, transactionID string) (domain.GatewayStatus, error) {
	form := url.Values{
		"MbWayKey":     {creds.Key},
		"Canal":        {creds.Channel},
		"idspagamento": {transactionID},
	}

	body, status, err := c.postForm(ctx, endpointRequireState, form)
	if err != nil {
		return domain.StatusUnknown, err
	}
	if status != http.StatusOK {
		c.logger.Warn("ifthenpay status query returned non-200",
			zap.Int("http_status", status),
			zap.String("transaction_id", transactionID))
		return domain.StatusUnknown, nil
	}

	var resp requireStateResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.EstadoPedidos) == 0 {
		return domain.StatusUnknown, nil
	}

	return MapStatus(resp.EstadoPedidos[0].Estado), nil
}

// postForm performs one form-encoded POST against the gateway. Network
// failures and timeouts surface as ErrGatewayUnreachable.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.entrypoint+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, domain.NewPaymentError(domain.ErrGatewayUnreachable,
			"ifthenpay request failed: "+err.Error(),
			"GATEWAY_UNREACHABLE")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.NewPaymentError(domain.ErrGatewayUnreachable,
			"failed to read ifthenpay response: "+err.Error(),
			"GATEWAY_UNREACHABLE")
	}
	return body, resp.StatusCode, nil
}
