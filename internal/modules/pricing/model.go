// README: Basket pricing inputs and breakdown.
package pricing

// Line is one basket entry. FinalPrice, when set, is trusted as-is.
type Line struct {
	Quantity   int
	UnitPrice  float64
	Discount   float64
	FinalPrice *float64
}

// Overrides lets the caller pin individual breakdown fields; nil means derive.
type Overrides struct {
	Subtotal       *float64
	DeliveryFee    *float64
	CouponDiscount *float64
	Tax            *float64
	GrandTotal     *float64
}

type Breakdown struct {
	Subtotal       float64 `json:"subtotal"`
	DeliveryFee    float64 `json:"deliveryFee"`
	CouponDiscount float64 `json:"couponDiscount"`
	Tax            float64 `json:"tax"`
	GrandTotal     float64 `json:"grandTotal"`
}
