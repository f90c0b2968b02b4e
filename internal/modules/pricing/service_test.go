package pricing

import (
	"errors"
	"testing"

	"keeva/internal/config"
)

func ptr(v float64) *float64 { return &v }

func newTestService() *Service {
	return NewService(config.PricingConfig{DeliveryFee: 15, TaxRate: 0.03})
}

func TestFinalPrice(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name string
		line Line
		want float64
	}{
		{"plain", Line{Quantity: 2, UnitPrice: 50}, 100},
		{"discount", Line{Quantity: 1, UnitPrice: 30, Discount: 5}, 25},
		{"discount larger than total clamps to zero", Line{Quantity: 1, UnitPrice: 3, Discount: 10}, 0},
		{"explicit final price wins", Line{Quantity: 3, UnitPrice: 10, FinalPrice: ptr(12.5)}, 12.5},
		{"fractional", Line{Quantity: 3, UnitPrice: 0.1}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.FinalPrice(tt.line); got != tt.want {
				t.Errorf("FinalPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuoteDerived(t *testing.T) {
	svc := newTestService()
	a := svc.FinalPrice(Line{Quantity: 2, UnitPrice: 50})
	b := svc.FinalPrice(Line{Quantity: 1, UnitPrice: 30, Discount: 5})

	got, err := svc.Quote([]float64{a, b}, Overrides{})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := Breakdown{Subtotal: 125, DeliveryFee: 15, CouponDiscount: 0, Tax: 3.75, GrandTotal: 143.75}
	if got != want {
		t.Fatalf("Quote() = %+v, want %+v", got, want)
	}
}

func TestQuoteOverrides(t *testing.T) {
	svc := newTestService()

	got, err := svc.Quote([]float64{100}, Overrides{DeliveryFee: ptr(0), CouponDiscount: ptr(20)})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.GrandTotal != 83 {
		t.Errorf("grand total = %v, want 83", got.GrandTotal)
	}

	got, err = svc.Quote([]float64{100}, Overrides{Tax: ptr(1), GrandTotal: ptr(99.99)})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.Tax != 1 || got.GrandTotal != 99.99 {
		t.Errorf("overrides not trusted: %+v", got)
	}
}

func TestQuoteNeverNegative(t *testing.T) {
	svc := newTestService()
	got, err := svc.Quote([]float64{10}, Overrides{CouponDiscount: ptr(500)})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.GrandTotal != 0 {
		t.Errorf("grand total = %v, want 0", got.GrandTotal)
	}

	if _, err := svc.Quote(nil, Overrides{Subtotal: ptr(-1)}); !errors.Is(err, ErrNegative) {
		t.Errorf("expected ErrNegative, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[float64]int64{143.75: 14375, 0.1 + 0.2: 30, 19.999: 2000, 0: 0}
	for in, want := range cases {
		if got := MinorUnits(in); got != want {
			t.Errorf("MinorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}
