package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))

	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig), "wrong secret")
	assert.False(t, VerifySignature("secret", "order_2", "pay_1", sig), "wrong order")
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig), "wrong payment")
	assert.False(t, VerifySignature("", "order_1", "pay_1", sig), "empty secret")
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""), "empty signature")
}

func TestParseOrder(t *testing.T) {
	o, err := parseOrder(map[string]interface{}{
		"id":       "order_9A33XWu170gUtm",
		"amount":   float64(14375),
		"currency": "INR",
		"receipt":  "rcpt-1",
	})
	require.NoError(t, err)
	assert.Equal(t, GatewayOrder{ID: "order_9A33XWu170gUtm", Amount: 14375, Currency: "INR", Receipt: "rcpt-1"}, o)

	_, err = parseOrder(map[string]interface{}{"error": "bad"})
	assert.True(t, errors.Is(err, ErrGateway))
}
