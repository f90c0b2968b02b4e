// README: Razorpay implementation of the payment gateway.
package payment

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

var ErrGateway = errors.New("payment gateway error")

type Razorpay struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpay(keyID, secret string) *Razorpay {
	return &Razorpay{client: razorpay.NewClient(keyID, secret), keyID: keyID, secret: secret}
}

func (r *Razorpay) KeyID() string { return r.keyID }

// CreateOrder opens a Razorpay order. The SDK is not context aware; ctx is only
// checked before the call.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	notes := map[string]interface{}{}
	for k, v := range req.Notes {
		notes[k] = v
	}
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return parseOrder(body)
}

func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return VerifySignature(r.secret, gatewayOrderID, paymentID, signature)
}

func parseOrder(body map[string]interface{}) (GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return GatewayOrder{}, fmt.Errorf("%w: response without order id", ErrGateway)
	}
	o := GatewayOrder{ID: id}
	o.Currency, _ = body["currency"].(string)
	o.Receipt, _ = body["receipt"].(string)
	switch v := body["amount"].(type) {
	case float64:
		o.Amount = int64(v)
	case int64:
		o.Amount = v
	case int:
		o.Amount = int64(v)
	}
	return o, nil
}
