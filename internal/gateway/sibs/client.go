// Package sibs implements the domain.PaymentGateway interface against the
// SIBS MB Way HTTP API.
//
// SIBS initiation is two-step: create the transaction, then bind the payer's
// phone number to it. The gateway offers no atomicity across the two calls,
// so a failed bind is compensated with a best-effort void of the created
// transaction instead of leaving it ambiguously pending.
package sibs

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
	// DefaultEntrypoint is the production SIBS MB Way endpoint.
	DefaultEntrypoint = "https://mbway.sibs.pt/MBWayService.asmx"

	endpointCreate = "/CreateTransactionJSON"
	endpointBind   = "/BindAliasJSON"
	endpointVoid   = "/VoidTransactionJSON"
	endpointState  = "/TransactionStateJSON"

	// Gateway status codes.
	statePaid      = "000"
	stateCancelled = "C20"
	stateDeclined  = "D20"
	stateExpired   = "E20"
	statePending   = "P20"
)

var statusTable = map[string]domain.GatewayStatus{
	statePaid:      domain.StatusPaid,
	stateCancelled: domain.StatusCancelled,
	stateDeclined:  domain.StatusPending,
	stateExpired:   domain.StatusPending,
	statePending:   domain.StatusPending,
}

// MapStatus translates a raw SIBS code to a logical status.
func MapStatus(code string) domain.GatewayStatus {
	if s, ok := statusTable[code]; ok {
		return s
	}
	return domain.StatusUnknown
}

// Client talks to the SIBS MB Way API. Credentials are per-call, not
// per-client.
type Client struct {
	entrypoint string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a SIBS client. An empty entrypoint selects the
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

// gatewayResponse is the common JSON envelope of every SIBS call.
type gatewayResponse struct {
	Status        string `json:"Status"`
	TransactionID string `json:"TransactionId"`
	Message       string `json:"Message"`
}

// Initiate creates a transaction and binds the payer's phone number to it.
// The transaction id is only returned once both steps succeeded; a failed
// bind voids the freshly created transaction.
func (c *Client) Initiate(ctx context.Context, creds domain.GatewayCredentials, req domain.InitiationRequest) (string, error) {
	createForm := url.Values{
		"TerminalKey": {creds.Key},
		"Channel":     {creds.Channel},
		"Reference":   {req.OrderRef},
		"Amount":      {req.Amount()},
		"Email":       {req.Email},
		"Description": {req.Description},
	}

	created, err := c.call(ctx, endpointCreate, createForm)
	if err != nil {
		return "", err
	}
	if created.Status != statePaid || created.TransactionID == "" {
		return "", domain.NewPaymentError(domain.ErrGatewayRejected,
			fmt.Sprintf("sibs rejected transaction creation with code %q", created.Status),
			"GATEWAY_REJECTED")
	}

	bindForm := url.Values{
		"TerminalKey":   {creds.Key},
		"Channel":       {creds.Channel},
		"TransactionId": {created.TransactionID},
		"Alias":         {req.PhoneNumber},
	}

	bound, err := c.call(ctx, endpointBind, bindForm)
	if err == nil && bound.Status == statePaid {
		return created.TransactionID, nil
	}

	// Bind failed after create succeeded. Void the transaction so it cannot
	// linger as a pending payment nobody can complete.
	c.void(ctx, creds, created.TransactionID)

	if err != nil {
		return "", err
	}
	return "", domain.NewPaymentError(domain.ErrGatewayRejected,
		fmt.Sprintf("sibs rejected phone binding with code %q", bound.Status),
		"GATEWAY_REJECTED")
}

// void cancels a half-created transaction. Best effort: a void failure is
// logged but not propagated, the initiation error is what the caller needs.
func (c *Client) void(ctx context.Context, creds domain.GatewayCredentials, transactionID string) {
	form := url.Values{
		"TerminalKey":   {creds.Key},
		"Channel":       {creds.Channel},
		"TransactionId": {transactionID},
	}
	resp, err := c.call(ctx, endpointVoid, form)
	if err != nil {
		c.logger.Warn("sibs void request failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return
	}
	if resp.Status != statePaid {
		c.logger.Warn("sibs refused to void transaction",
			zap.String("transaction_id", transactionID),
			zap.String("status", resp.Status))
	}
}

// stateResponse is the JSON body of a TransactionStateJSON call.
type stateResponse struct {
	Status       string `json:"Status"`
	Transactions []struct {
		TransactionID string `json:"TransactionId"`
		Status        string `json:"Status"`
	} `json:"Transactions"`
}

// QueryStatus asks the gateway for the current status of a transaction.
func (c *Client) QueryStatus(ctx context.Context, creds domain.GatewayCredentials, transactionID string) (domain.GatewayStatus, error) {
	form := url.Values{
		"TerminalKey":   {creds.Key},
		"Channel":       {creds.Channel},
		"TransactionId": {transactionID},
	}

	body, status, err := c.postForm(ctx, endpointState, form)
	if err != nil {
		return domain.StatusUnknown, err
	}
	if status != http.StatusOK {
		c.logger.Warn("sibs status query returned non-200",
			zap.Int("http_status", status),
			zap.String("transaction_id", transactionID))
		return domain.StatusUnknown, nil
	}

	var resp stateResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Transactions) == 0 {
		return domain.StatusUnknown, nil
	}

	return MapStatus(resp.Transactions[0].Status), nil
}

// call performs one form-encoded POST and decodes the common envelope.
// Non-200 responses map to ErrGatewayRejected: SIBS signals every
// application-level refusal through the envelope, so a bad HTTP status
// means the request itself was not accepted.
func (c *Client) call(ctx context.Context, endpoint string, form url.Values) (*gatewayResponse, error) {
	body, status, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, domain.NewPaymentError(domain.ErrGatewayRejected,
			fmt.Sprintf("sibs returned HTTP %d", status),
			"GATEWAY_HTTP_ERROR")
	}

	var resp gatewayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewPaymentError(domain.ErrGatewayRejected,
			"sibs returned a malformed response",
			"GATEWAY_BAD_RESPONSE")
	}
	return &resp, nil
}

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
			"sibs request failed: "+err.Error(),
			"GATEWAY_UNREACHABLE")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.NewPaymentError(domain.ErrGatewayUnreachable,
			"failed to read sibs response: "+err.Error(),
			"GATEWAY_UNREACHABLE")
	}
	return body, resp.StatusCode, nil
}
