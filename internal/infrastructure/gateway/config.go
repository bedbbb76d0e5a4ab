package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Config holds configuration for the hosted payment gateway integration
type Config struct {
	// APIKey authenticates outbound API calls to the gateway
	APIKey string
	// WebhookSecret is the shared secret for webhook and checkout signatures
	WebhookSecret string
	// APIBaseURL is the base URL for the gateway API (production or sandbox)
	APIBaseURL string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// ProductionAPIURL is the production API endpoint
	ProductionAPIURL = "https://api.paygate.example.com"
	// SandboxAPIURL is the sandbox API endpoint
	SandboxAPIURL = "https://api.sandbox.paygate.example.com"
)

// Errors for gateway configuration
var (
	ErrConfigMissingAPIKey        = errors.New("gateway: API key is required")
	ErrConfigMissingWebhookSecret = errors.New("gateway: webhook secret is required")
)

// NewConfig creates a new gateway configuration with defaults
func NewConfig(apiKey, webhookSecret string) *Config {
	return &Config{
		APIKey:         apiKey,
		WebhookSecret:  webhookSecret,
		APIBaseURL:     ProductionAPIURL,
		IsSandbox:      false,
		TimeoutSeconds: 30,
	}
}

// NewSandboxConfig creates a new gateway configuration for the sandbox environment
func NewSandboxConfig(apiKey, webhookSecret string) *Config {
	return &Config{
		APIKey:         apiKey,
		WebhookSecret:  webhookSecret,
		APIBaseURL:     SandboxAPIURL,
		IsSandbox:      true,
		TimeoutSeconds: 30,
	}
}

// Validate validates the gateway configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.WebhookSecret == "" {
		return ErrConfigMissingWebhookSecret
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = SandboxAPIURL
		} else {
			c.APIBaseURL = ProductionAPIURL
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// SignPayload computes the hex HMAC-SHA256 of a raw webhook body.
// The gateway sends the same value in the signature header.
func (c *Config) SignPayload(payload []byte) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignCheckout computes the checkout confirmation signature over
// "gatewayOrderID|gatewayPaymentID"
func (c *Config) SignCheckout(gatewayOrderID, gatewayPaymentID string) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write([]byte(gatewayOrderID))
	h.Write([]byte("|"))
	h.Write([]byte(gatewayPaymentID))
	return hex.EncodeToString(h.Sum(nil))
}
