package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// maxResponseSize limits the gateway response body size
const maxResponseSize = 1 * 1024 * 1024 // 1MB

// HMACAdapter implements payment.GatewayAdapter against a gateway that
// signs every webhook body with HMAC-SHA256 over the raw bytes
type HMACAdapter struct {
	config     *Config
	httpClient *http.Client
}

// NewHMACAdapter creates a new adapter with the given configuration
func NewHMACAdapter(config *Config) (*HMACAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HMACAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// webhookPayload is the gateway's webhook wire format
type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		PaymentID string `json:"payment_id"`
		OrderID   string `json:"order_id"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// VerifyWebhook authenticates the raw body against the signature header and
// decodes it. The body is not parsed until the signature checks out, so a
// forged payload never reaches the JSON decoder.
func (a *HMACAdapter) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if err := a.verifySignature(payload, signature); err != nil {
		return nil, err
	}

	var wire webhookPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Malformed webhook payload")
	}

	if wire.Type == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload missing event type")
	}
	if wire.Data.PaymentID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload missing payment ID")
	}

	orderID, err := uuid.Parse(wire.Data.OrderID)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload carries an invalid order ID")
	}

	currency := valueobject.Currency(wire.Data.Currency)
	if wire.Data.Currency == "" {
		currency = valueobject.USD
	}
	amount, err := valueobject.NewMoneyFromString(wire.Data.Amount, currency)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload carries an invalid amount")
	}

	return &payment.WebhookEvent{
		Type:             wire.Type,
		GatewayPaymentID: wire.Data.PaymentID,
		OrderID:          orderID,
		Amount:           amount,
	}, nil
}

// VerifyCheckoutSignature authenticates the client-side checkout handshake.
// A passing check confirms the gateway produced the pair; it settles nothing.
func (a *HMACAdapter) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return shared.NewDomainError("INVALID_INPUT", "Gateway order ID and payment ID are required")
	}

	expected := a.config.SignCheckout(gatewayOrderID, gatewayPaymentID)
	return compareSignatures(expected, signature)
}

// intentRequest is the outbound payment-intent wire format
type intentRequest struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// intentResponse is the gateway's answer
type intentResponse struct {
	GatewayOrderID string    `json:"gateway_order_id"`
	CheckoutURL    string    `json:"checkout_url"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// CreateIntent registers a payment intent with the gateway
func (a *HMACAdapter) CreateIntent(ctx context.Context, req *payment.IntentRequest) (*payment.Intent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(intentRequest{
		OrderID:     req.OrderID.String(),
		OrderNumber: req.OrderNumber,
		Amount:      req.Amount.StringFixed(2),
		Currency:    string(req.Amount.Currency()),
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.APIBaseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var wire intentResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	if wire.GatewayOrderID == "" || wire.CheckoutURL == "" {
		return nil, fmt.Errorf("gateway response missing order ID or checkout URL")
	}

	return &payment.Intent{
		GatewayOrderID: wire.GatewayOrderID,
		CheckoutURL:    wire.CheckoutURL,
		ExpiresAt:      wire.ExpiresAt,
	}, nil
}

// verifySignature checks a hex HMAC-SHA256 signature over the raw payload
func (a *HMACAdapter) verifySignature(payload []byte, signature string) error {
	return compareSignatures(a.config.SignPayload(payload), signature)
}

// compareSignatures compares two hex signatures in constant time.
// A signature that is not valid hex fails the same way as a wrong one.
func compareSignatures(expected, provided string) error {
	expectedMAC, err := hex.DecodeString(expected)
	if err != nil {
		return shared.ErrInvalidSignature
	}
	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return shared.ErrInvalidSignature
	}
	if !hmac.Equal(expectedMAC, providedMAC) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// Ensure HMACAdapter implements payment.GatewayAdapter
var _ payment.GatewayAdapter = (*HMACAdapter)(nil)
