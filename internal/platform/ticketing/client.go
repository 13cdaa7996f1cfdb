// Package ticketing implements the domain.PaymentAttemptStore interface by
// communicating with the ticketing core's internal API.
package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ticketpt/mbway-payments/internal/domain"
)

// Client makes HTTP requests to the ticketing core's internal payment API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new ticketing core client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// attemptStateResponse is the JSON body returned for a payment attempt read.
type attemptStateResponse struct {
	PaymentRef string `json:"payment_ref"`
	State      string `json:"state"`
}

// State reads the current state of a payment attempt.
func (c *Client) State(ctx context.Context, paymentRef string) (domain.AttemptState, error) {
	url := fmt.Sprintf("%s/api/internal/payments/%s/", c.baseURL, paymentRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", domain.NewPaymentError(domain.ErrCoreAPIError,
			fmt.Sprintf("core returned status %d reading payment %s: %s",
				resp.StatusCode, paymentRef, string(body)),
			"CORE_READ_ERROR")
	}

	var stateResp attemptStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&stateResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return domain.AttemptState(stateResp.State), nil
}

// conflictResponse is the JSON body the core sends with HTTP 409.
type conflictResponse struct {
	Code string `json:"code"`
}

// Confirm transitions the payment attempt to confirmed. A 409 with the
// quota code means the event's capacity is exhausted; everything else
// non-2xx is a plain core error.
func (c *Client) Confirm(ctx context.Context, paymentRef string) error {
	return c.transition(ctx, paymentRef, "confirm")
}

// Fail transitions the payment attempt to failed.
func (c *Client) Fail(ctx context.Context, paymentRef string) error {
	return c.transition(ctx, paymentRef, "fail")
}

func (c *Client) transition(ctx context.Context, paymentRef, action string) error {
	url := fmt.Sprintf("%s/api/internal/payments/%s/%s/", c.baseURL, paymentRef, action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		var conflict conflictResponse
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err == nil &&
			conflict.Code == "quota_exceeded" {
			return domain.ErrCapacityConflict
		}
		return domain.NewPaymentError(domain.ErrCoreAPIError,
			fmt.Sprintf("core refused %s for payment %s", action, paymentRef),
			"CORE_CONFLICT")
	default:
		body, _ := io.ReadAll(resp.Body)
		return domain.NewPaymentError(domain.ErrCoreAPIError,
			fmt.Sprintf("core returned status %d for %s of payment %s: %s",
				resp.StatusCode, action, paymentRef, string(body)),
			"CORE_TRANSITION_ERROR")
	}
}
