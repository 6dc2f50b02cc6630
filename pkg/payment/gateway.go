// Package payment is the boundary to the payment provider. The core only
// ever sees a verified, decoded Event; signature schemes and payload formats
// stay on this side of the line.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// TradeStateSuccess is the only trade state that triggers activation.
const TradeStateSuccess = "SUCCESS"

// Event is a verified, decoded payment notification. The gateway redelivers
// the same event until acknowledged, so consumers must tolerate duplicates.
type Event struct {
	OrderID    string `json:"orderId"`
	TradeState string `json:"tradeState"`
}

// Gateway defines the interface for payment providers.
type Gateway interface {
	// CreatePaymentLink creates a checkout link for a pending order.
	CreatePaymentLink(userID string, schemeID int, orderID string, amount int64) (string, error)
	// VerifySignature verifies a webhook payload's signature header.
	VerifySignature(payload []byte, signature string) bool
	// DecodeEvent parses a verified payload into an Event.
	DecodeEvent(payload []byte) (*Event, error)
}

// HMACGateway verifies webhook payloads with an HMAC-SHA256 shared secret,
// using the "sha256=<hex>" signature header convention.
type HMACGateway struct {
	secret  string
	baseURL string
}

// NewHMACGateway creates a gateway client for the given checkout base URL
// and webhook shared secret.
func NewHMACGateway(baseURL, secret string) *HMACGateway {
	return &HMACGateway{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *HMACGateway) CreatePaymentLink(userID string, schemeID int, orderID string, amount int64) (string, error) {
	return fmt.Sprintf("%s/pay?order_id=%s&amount=%d", g.baseURL, orderID, amount), nil
}

func (g *HMACGateway) VerifySignature(payload []byte, signature string) bool {
	parts := strings.Split(signature, "=")
	if len(parts) != 2 || parts[0] != "sha256" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(parts[1]), []byte(expected))
}

func (g *HMACGateway) DecodeEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode payment event: %w", err)
	}
	if event.OrderID == "" {
		return nil, fmt.Errorf("payment event missing order id")
	}
	return &event, nil
}

// Sign computes the signature header value for a payload. Exposed so tests
// and the dev simulator can produce valid callbacks.
func (g *HMACGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// MockGateway accepts everything; for tests and local development.
type MockGateway struct{}

// NewMockGateway creates a new MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) CreatePaymentLink(userID string, schemeID int, orderID string, amount int64) (string, error) {
	return "https://example.com/pay?order_id=" + orderID, nil
}

func (g *MockGateway) VerifySignature(payload []byte, signature string) bool {
	return true
}

func (g *MockGateway) DecodeEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode payment event: %w", err)
	}
	return &event, nil
}
