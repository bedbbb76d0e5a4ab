package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Webhook event types delivered by the gateway
const (
	WebhookEventPaymentCaptured = "payment.captured"
	WebhookEventPaymentFailed   = "payment.failed"
)

// WebhookEvent is a verified, decoded gateway notification
type WebhookEvent struct {
	Type             string
	GatewayPaymentID string
	OrderID          uuid.UUID
	Amount           valueobject.Money
}

// IsSettlement reports whether the event settles the referenced order
func (e *WebhookEvent) IsSettlement() bool {
	return e.Type == WebhookEventPaymentCaptured
}

// IntentRequest describes an outbound payment-intent creation
type IntentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	Amount      valueobject.Money
	Description string
}

// Validate checks the request fields
func (r *IntentRequest) Validate() error {
	if r.OrderID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Order ID cannot be empty")
	}
	if r.OrderNumber == "" {
		return shared.NewDomainError("INVALID_INPUT", "Order number cannot be empty")
	}
	if !r.Amount.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT", "Intent amount must be positive")
	}
	return nil
}

// Intent is the gateway's answer to an intent creation
type Intent struct {
	GatewayOrderID string
	CheckoutURL    string
	ExpiresAt      time.Time
}

// GatewayAdapter talks to the external payment gateway. Inbound payloads are
// untrusted until their signature verifies; verification uses a constant-time
// comparison so response timing leaks nothing about the expected signature.
type GatewayAdapter interface {
	// VerifyWebhook authenticates a raw webhook body against its signature
	// header and decodes it. Fails with shared.ErrInvalidSignature on
	// mismatch; no decoding happens before the signature checks out.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)

	// VerifyCheckoutSignature authenticates the client-side checkout
	// confirmation handshake. It confirms integrity only; settlement stays
	// with the webhook path.
	VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) error

	// CreateIntent registers a payment intent with the gateway
	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)
}
