package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeva/internal/config"
	"keeva/internal/modules/pricing"
)

const twoItemBasket = `{
	"items": [
		{"productId": "A", "quantity": 2, "unitPrice": 50},
		{"productId": "B", "quantity": 1, "unitPrice": 30, "discount": 5}
	],
	"payment": {"method": "cod"}
}`

func TestPlaceOrderReqBindsUnitPrice(t *testing.T) {
	var req placeOrderReq
	require.NoError(t, json.Unmarshal([]byte(twoItemBasket), &req))

	cmd := req.command("u1")
	require.Len(t, cmd.Items, 2)
	assert.Equal(t, "u1", cmd.CustomerID)
	assert.Equal(t, "cod", cmd.PaymentMethod)
	assert.Equal(t, 50.0, cmd.Items[0].UnitPrice)
	assert.Equal(t, 30.0, cmd.Items[1].UnitPrice)
	assert.Equal(t, 5.0, cmd.Items[1].Discount)
	assert.Nil(t, cmd.Items[0].FinalPrice)

	p := pricing.NewService(config.PricingConfig{DeliveryFee: 15, TaxRate: 0.03})
	var finals []float64
	for _, it := range cmd.Items {
		finals = append(finals, p.FinalPrice(pricing.Line{
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, Discount: it.Discount, FinalPrice: it.FinalPrice,
		}))
	}
	quote, err := p.Quote(finals, cmd.Pricing)
	require.NoError(t, err)
	assert.Equal(t, 125.0, quote.Subtotal)
	assert.Equal(t, 3.75, quote.Tax)
	assert.Equal(t, 143.75, quote.GrandTotal)
}
