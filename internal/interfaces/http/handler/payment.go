package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	paymentapp "github.com/storefront/backend/internal/application/payment"
)

// PaymentHandler handles payment and settlement API endpoints
type PaymentHandler struct {
	BaseHandler
	settlementService *paymentapp.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(settlementService *paymentapp.SettlementService) *PaymentHandler {
	return &PaymentHandler{
		settlementService: settlementService,
	}
}

// CreateIntent registers a payment intent with the gateway for one of the
// calling user's orders.
// POST /orders/:id/payment/intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	result, err := h.settlementService.CreateIntent(c.Request.Context(), userID, orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// VerifyCheckout authenticates the client-side checkout confirmation
// handshake. Settlement itself arrives over the webhook.
// POST /payments/checkout/verify
func (h *PaymentHandler) VerifyCheckout(c *gin.Context) {
	var req paymentapp.VerifyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.settlementService.VerifyCheckout(c.Request.Context(), &req); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{"verified": true})
}

// ProcessCashPayment settles an order with an operator-entered cash payment.
// POST /admin/orders/:id/payment/cash
func (h *PaymentHandler) ProcessCashPayment(c *gin.Context) {
	operatorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	result, err := h.settlementService.ProcessCashPayment(c.Request.Context(), orderID, operatorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// RecordRefund refunds a paid order in full.
// POST /admin/orders/:id/payment/refund
func (h *PaymentHandler) RecordRefund(c *gin.Context) {
	operatorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	result, err := h.settlementService.RecordRefund(c.Request.Context(), orderID, operatorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// ListForOrder lists payment records for an order, newest first.
// GET /admin/orders/:id/payments
func (h *PaymentHandler) ListForOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	result, err := h.settlementService.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
