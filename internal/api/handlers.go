// Package api contains the HTTP handlers and routing for the MB Way
// payment service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ticketpt/mbway-payments/internal/domain"
	"github.com/ticketpt/mbway-payments/internal/payment"
	"go.uber.org/zap"
)

// Handler contains the HTTP handlers for the payment API.
type Handler struct {
	paymentService *payment.Service
	logger         *zap.Logger
}

// NewHandler creates a new API handler with the payment service.
func NewHandler(paymentService *payment.Service, logger *zap.Logger) *Handler {
	return &Handler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// InitiateRequest represents the JSON body for the initiate endpoint.
type InitiateRequest struct {
	Gateway     string `json:"gateway" binding:"required"`
	Key         string `json:"key" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
	OrderRef    string `json:"order_ref" binding:"required"`
	PaymentRef  string `json:"payment_ref" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

// InitiateResponse represents the response from the initiate endpoint.
type InitiateResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Initiate handles POST /api/v1/payments/initiate.
// Submits the create-payment request to the selected gateway and records
// the resulting transaction.
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request body: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	rec, err := h.paymentService.Initiate(c.Request.Context(), domain.InitiationRequest{
		Gateway: req.Gateway,
		Credentials: domain.GatewayCredentials{
			Key:     req.Key,
			Channel: req.Channel,
		},
		OrderRef:    req.OrderRef,
		PaymentRef:  req.PaymentRef,
		AmountCents: req.AmountCents,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, InitiateResponse{
		Success:       true,
		TransactionID: rec.TransactionID,
	})
}

// StatusResponse represents the response from the status endpoint.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Status handles GET /api/v1/payments/:payment_ref/status.
// Read-through query against the gateway, used by the control panel.
func (h *Handler) Status(c *gin.Context) {
	paymentRef := c.Param("payment_ref")

	status, err := h.paymentService.Status(c.Request.Context(), paymentRef)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Success: true,
		Status:  string(status),
	})
}

// Webhook handles GET /webhook/mbway?idpedido=<transaction id>.
// The gateway contract: 200 once processing succeeded (including the
// idempotent no-op on a repeated delivery), 405 when the identifier is
// missing from the request. Unknown transaction ids get 404 so a forged or
// stale callback is visibly unresolved.
func (h *Handler) Webhook(c *gin.Context) {
	transactionID := c.Query("idpedido")
	if transactionID == "" {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{
			Success: false,
			Error:   "idpedido is required",
			Code:    "MISSING_TRANSACTION_ID",
		})
		return
	}

	outcome, err := h.paymentService.Reconcile(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTransaction) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Success: false,
				Error:   "no transaction recorded for this id",
				Code:    "UNKNOWN_TRANSACTION",
			})
			return
		}
		h.logger.Error("webhook reconciliation failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Error:   "reconciliation failed",
			Code:    "RECONCILE_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

// DeleteOrderTransactions handles DELETE /api/v1/orders/:order_ref/transactions.
// Called by the platform when an order is deleted so the transaction records
// cascade with it.
func (h *Handler) DeleteOrderTransactions(c *gin.Context) {
	orderRef := c.Param("order_ref")

	if err := h.paymentService.DeleteOrderTransactions(c.Request.Context(), orderRef); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "mbway-payments",
	})
}

// handleServiceError maps domain errors to HTTP responses.
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInitiation):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateTransaction):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrUnknownTransaction):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrGatewayRejected),
		errors.Is(err, domain.ErrGatewayUnreachable):
		statusCode = http.StatusBadGateway
	}

	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) {
		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   paymentErr.Message,
			Code:    paymentErr.Code,
		})
		return
	}

	if statusCode == http.StatusInternalServerError {
		h.logger.Error("unhandled service error", zap.Error(err))
		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   "Internal server error",
			Code:    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}
