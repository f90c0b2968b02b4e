// README: Pricing service computes item final prices and the order breakdown.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"keeva/internal/config"
)

var ErrNegative = errors.New("pricing values must not be negative")

type Service struct {
	deliveryFee decimal.Decimal
	taxRate     decimal.Decimal
}

func NewService(cfg config.PricingConfig) *Service {
	return &Service{
		deliveryFee: decimal.NewFromFloat(cfg.DeliveryFee),
		taxRate:     decimal.NewFromFloat(cfg.TaxRate),
	}
}

// FinalPrice is max(quantity*unitPrice - discount, 0) unless the line carries an explicit value.
func (s *Service) FinalPrice(l Line) float64 {
	if l.FinalPrice != nil {
		return *l.FinalPrice
	}
	v := decimal.NewFromInt(int64(l.Quantity)).
		Mul(decimal.NewFromFloat(l.UnitPrice)).
		Sub(decimal.NewFromFloat(l.Discount))
	if v.IsNegative() {
		return 0
	}
	f, _ := v.Round(2).Float64()
	return f
}

// Quote derives every field the caller did not override. Grand total is
// subtotal + delivery fee - coupon discount + tax, rounded to 2 decimals and floored at 0.
func (s *Service) Quote(finalPrices []float64, ov Overrides) (Breakdown, error) {
	for _, p := range []*float64{ov.Subtotal, ov.DeliveryFee, ov.CouponDiscount, ov.Tax, ov.GrandTotal} {
		if p != nil && *p < 0 {
			return Breakdown{}, ErrNegative
		}
	}

	subtotal := decimal.Zero
	if ov.Subtotal != nil {
		subtotal = decimal.NewFromFloat(*ov.Subtotal)
	} else {
		for _, p := range finalPrices {
			subtotal = subtotal.Add(decimal.NewFromFloat(p))
		}
	}
	fee := s.deliveryFee
	if ov.DeliveryFee != nil {
		fee = decimal.NewFromFloat(*ov.DeliveryFee)
	}
	discount := decimal.Zero
	if ov.CouponDiscount != nil {
		discount = decimal.NewFromFloat(*ov.CouponDiscount)
	}
	tax := subtotal.Mul(s.taxRate).Round(2)
	if ov.Tax != nil {
		tax = decimal.NewFromFloat(*ov.Tax)
	}
	total := subtotal.Add(fee).Sub(discount).Add(tax).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}
	if ov.GrandTotal != nil {
		total = decimal.NewFromFloat(*ov.GrandTotal)
	}

	return Breakdown{
		Subtotal:       toFloat(subtotal),
		DeliveryFee:    toFloat(fee),
		CouponDiscount: toFloat(discount),
		Tax:            toFloat(tax),
		GrandTotal:     toFloat(total),
	}, nil
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
