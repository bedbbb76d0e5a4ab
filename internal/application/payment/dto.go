package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/payment"
)

// ==================== Payment DTOs ====================

// VerifyCheckoutRequest is the client-side checkout confirmation handshake.
type VerifyCheckoutRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required,max=128"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required,max=128"`
	Signature        string `json:"signature" binding:"required"`
}

// PaymentRecordResponse is a settlement ledger entry as returned to clients.
type PaymentRecordResponse struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	ProcessedBy      *uuid.UUID      `json:"processed_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// WebhookResult reports the outcome of a webhook ingestion.
type WebhookResult struct {
	OrderID   uuid.UUID `json:"order_id"`
	Settled   bool      `json:"settled"`
	Duplicate bool      `json:"duplicate"`
}

// IntentResponse is the gateway's checkout handle for an order.
type IntentResponse struct {
	GatewayOrderID string    `json:"gateway_order_id"`
	CheckoutURL    string    `json:"checkout_url"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// ToPaymentRecordResponse converts a payment record to its response form.
func ToPaymentRecordResponse(r *payment.Record) *PaymentRecordResponse {
	return &PaymentRecordResponse{
		ID:               r.ID,
		OrderID:          r.OrderID,
		GatewayPaymentID: r.GatewayPaymentID,
		Amount:           r.Amount,
		Currency:         string(r.Currency),
		Method:           string(r.Method),
		Status:           string(r.Status),
		ProcessedBy:      r.ProcessedBy,
		CreatedAt:        r.CreatedAt,
	}
}
