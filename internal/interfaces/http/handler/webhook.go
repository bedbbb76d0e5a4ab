package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// GatewaySignatureHeader carries the HMAC signature of the webhook body
const GatewaySignatureHeader = "X-Gateway-Signature"

// maxWebhookBodyBytes bounds the raw webhook payload size
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives payment gateway webhooks. The endpoint is
// unauthenticated; the body's HMAC signature is the only trust anchor.
type WebhookHandler struct {
	BaseHandler
	settlementService *paymentapp.SettlementService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(settlementService *paymentapp.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
	}
}

// HandlePaymentWebhook ingests one gateway webhook delivery. Duplicate
// deliveries are acknowledged with 200 so the gateway stops retrying.
// POST /webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	signature := c.GetHeader(GatewaySignatureHeader)
	if signature == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Missing gateway signature")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.BadRequest(c, "Could not read webhook body")
		return
	}
	if len(payload) == 0 {
		h.BadRequest(c, "Empty webhook body")
		return
	}

	result, err := h.settlementService.IngestWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
