package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACGatewayVerifySignature(t *testing.T) {
	g := NewHMACGateway("https://pay.example.com", "topsecret")
	payload := []byte(`{"orderId":"ord-1","tradeState":"SUCCESS"}`)

	t.Run("accepts its own signature", func(t *testing.T) {
		assert.True(t, g.VerifySignature(payload, g.Sign(payload)))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		sig := g.Sign(payload)
		assert.False(t, g.VerifySignature([]byte(`{"orderId":"ord-2"}`), sig))
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		other := NewHMACGateway("https://pay.example.com", "othersecret")
		assert.False(t, g.VerifySignature(payload, other.Sign(payload)))
	})

	t.Run("rejects malformed signature headers", func(t *testing.T) {
		assert.False(t, g.VerifySignature(payload, ""))
		assert.False(t, g.VerifySignature(payload, "md5=abc"))
		assert.False(t, g.VerifySignature(payload, "not-a-signature"))
	})
}

func TestHMACGatewayDecodeEvent(t *testing.T) {
	g := NewHMACGateway("https://pay.example.com", "topsecret")

	t.Run("decodes a valid event", func(t *testing.T) {
		event, err := g.DecodeEvent([]byte(`{"orderId":"ord-1","tradeState":"SUCCESS"}`))
		require.NoError(t, err)
		assert.Equal(t, "ord-1", event.OrderID)
		assert.Equal(t, TradeStateSuccess, event.TradeState)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := g.DecodeEvent([]byte(`{`))
		assert.Error(t, err)
	})

	t.Run("rejects an event without an order id", func(t *testing.T) {
		_, err := g.DecodeEvent([]byte(`{"tradeState":"SUCCESS"}`))
		assert.Error(t, err)
	})
}

func TestHMACGatewayPaymentLink(t *testing.T) {
	g := NewHMACGateway("https://pay.example.com/", "topsecret")

	link, err := g.CreatePaymentLink("user-1", 3, "ord-1", 100)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/pay?order_id=ord-1&amount=100", link)
}
