// README: Order service orchestrates placement, pricing, coupons, payment branching and status changes.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"keeva/internal/modules/customer"
	"keeva/internal/modules/pricing"
	"keeva/internal/payment"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrForbidden           = errors.New("not allowed")
	ErrNotFound            = errors.New("order not found")
	ErrConflict            = errors.New("order state conflict")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrDuplicateOrderID    = errors.New("duplicate order id")
)

// Broadcast event names.
const (
	EventNew           = "orders:new"
	EventStatus        = "orders:status"
	EventPaymentStatus = "orders:payment-status"
	EventInit          = "orders:init"
)

const (
	maxOrderIDAttempts  = 3
	defaultDeliveryType = "Instant"
	defaultDeliveryETA  = 45 * time.Minute
)

type Pricer interface {
	FinalPrice(l pricing.Line) float64
	Quote(finalPrices []float64, ov pricing.Overrides) (pricing.Breakdown, error)
}

type AddressBook interface {
	ShippingAddress(ctx context.Context, userID, addressID string, ov customer.Overrides) (customer.Snapshot, error)
}

// CouponConsumer flips a coupon to used. MarkUsed reports false when it was already used.
type CouponConsumer interface {
	MarkUsed(ctx context.Context, userID, code string) (bool, error)
	Release(ctx context.Context, userID, code string) error
}

// CategoryResolver looks up the catalog category of a product or service id.
type CategoryResolver interface {
	CategoryOf(ctx context.Context, productID string) (string, error)
}

// Broadcaster fans an event out to the owner, admin, partner, rider and category audiences.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload any, owner any, category string)
}

type Deps struct {
	Store     Repository
	Pricing   Pricer
	Addresses AddressBook
	Coupons   CouponConsumer
	Catalog   CategoryResolver
	Gateway   payment.Gateway
	Events    Broadcaster
	Currency  string
	Log       *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	store     Repository
	pricing   Pricer
	addresses AddressBook
	coupons   CouponConsumer
	catalog   CategoryResolver
	gateway   payment.Gateway
	events    Broadcaster
	currency  string
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		pricing:   d.Pricing,
		addresses: d.Addresses,
		coupons:   d.Coupons,
		catalog:   d.Catalog,
		gateway:   d.Gateway,
		events:    d.Events,
		currency:  d.Currency,
		log:       d.Log,
		now:       d.Now,
		newID:     d.NewID,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = NewOrderID
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.events == nil {
		s.events = noopBroadcaster{}
	}
	return s
}

type ItemInput struct {
	ProductID  string
	Name       string
	Quantity   int
	UnitPrice  float64
	Discount   float64
	FinalPrice *float64
	Image      string
	Category   string
}

type DeliveryInput struct {
	Type         string
	ExpectedTime *time.Time
	Instructions string
}

type PlaceCommand struct {
	CustomerID    string
	Items         []ItemInput
	Pricing       pricing.Overrides
	PaymentMethod string
	Delivery      DeliveryInput
	AddressID     string
	Address       customer.Overrides
	CouponCode    string
	Category      string
	Fulfillment   string
}

// Checkout is the result of the payment-initiating path. Gateway is nil for cod.
type Checkout struct {
	Order   *Order                `json:"order"`
	Gateway *payment.GatewayOrder `json:"razorpayOrder,omitempty"`
	KeyID   string                `json:"razorpayKeyId,omitempty"`
}

// Place creates a cash-on-delivery order. Online payments must use InitiatePayment.
func (s *Service) Place(ctx context.Context, cmd PlaceCommand) (*Order, error) {
	method, err := ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if method == PaymentOnline {
		return nil, fmt.Errorf("%w: online payments must be initiated via /api/orders/payment/initiate", ErrBadRequest)
	}
	o, err := s.build(ctx, cmd, PaymentCOD)
	if err != nil {
		return nil, err
	}
	if err := s.persistNew(ctx, o, nil); err != nil {
		return nil, err
	}
	return o, nil
}

// InitiatePayment creates an order through the payment branch: cod orders are
// created directly, online orders first open a gateway order for the grand total.
func (s *Service) InitiatePayment(ctx context.Context, cmd PlaceCommand) (*Checkout, error) {
	method, err := ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return nil, err
	}
	o, err := s.build(ctx, cmd, method)
	if err != nil {
		return nil, err
	}
	if method == PaymentCOD {
		if err := s.persistNew(ctx, o, nil); err != nil {
			return nil, err
		}
		return &Checkout{Order: o}, nil
	}

	if o.Pricing.GrandTotal <= 0 {
		return nil, fmt.Errorf("%w: online payment requires a positive amount", ErrBadRequest)
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: online payments are not configured", ErrBadRequest)
	}
	var gw payment.GatewayOrder
	err = s.persistNew(ctx, o, func() error {
		var err error
		gw, err = s.gateway.CreateOrder(ctx, payment.OrderRequest{
			Amount:   pricing.MinorUnits(o.Pricing.GrandTotal),
			Currency: s.currency,
			Receipt:  o.ID,
			Notes:    map[string]string{"userId": o.UserID, "paymentMethod": string(PaymentOnline)},
		})
		if err != nil {
			return err
		}
		o.Payment.GatewayOrderID = gw.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{Order: o, Gateway: &gw, KeyID: s.gateway.KeyID()}, nil
}

func (s *Service) build(ctx context.Context, cmd PlaceCommand, method PaymentMethod) (*Order, error) {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrBadRequest)
	}
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order items are required", ErrBadRequest)
	}
	fulfillment, err := ParseFulfillment(cmd.Fulfillment)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(cmd.Items))
	finals := make([]float64, 0, len(cmd.Items))
	for i, in := range cmd.Items {
		it, err := s.normalizeItem(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%w (item %d)", err, i)
		}
		items = append(items, it)
		finals = append(finals, it.FinalPrice)
	}

	quote, err := s.pricing.Quote(finals, cmd.Pricing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	addr, err := s.addresses.ShippingAddress(ctx, cmd.CustomerID, cmd.AddressID, cmd.Address)
	if err != nil {
		if errors.Is(err, customer.ErrNoAddress) || errors.Is(err, customer.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:          uuid.NewString(),
		UserID:      cmd.CustomerID,
		Category:    strings.TrimSpace(cmd.Category),
		Fulfillment: fulfillment,
		Items:       items,
		Pricing:     quote,
		Address:     addr,
		Payment:     Payment{Method: method, Status: PaymentPending},
		Delivery:    s.buildDelivery(cmd.Delivery, now),
		CouponCode:  strings.ToUpper(strings.TrimSpace(cmd.CouponCode)),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if o.Category == "" {
		o.Category = o.CategoryFor()
	}
	if fulfillment == FulfillmentService && o.Category == "" {
		return nil, fmt.Errorf("%w: service orders need a category", ErrBadRequest)
	}
	o.History = []HistoryEntry{{Status: StatusPending, By: UserRef(cmd.CustomerID), Role: "customer", At: now}}
	return o, nil
}

func (s *Service) normalizeItem(ctx context.Context, in ItemInput) (Item, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return Item{}, fmt.Errorf("%w: productId is required", ErrBadRequest)
	}
	if in.Quantity < 1 {
		return Item{}, fmt.Errorf("%w: quantity must be at least 1", ErrBadRequest)
	}
	if in.UnitPrice < 0 || in.Discount < 0 || (in.FinalPrice != nil && *in.FinalPrice < 0) {
		return Item{}, fmt.Errorf("%w: prices must not be negative", ErrBadRequest)
	}
	it := Item{
		ProductID: in.ProductID,
		Name:      in.Name,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Discount:  in.Discount,
		Image:     in.Image,
		Category:  strings.TrimSpace(in.Category),
	}
	it.FinalPrice = s.pricing.FinalPrice(pricing.Line{
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		Discount:   in.Discount,
		FinalPrice: in.FinalPrice,
	})
	if it.Category == "" && s.catalog != nil {
		if c, err := s.catalog.CategoryOf(ctx, in.ProductID); err == nil {
			it.Category = c
		} else {
			s.log.Debug("category lookup failed", "product_id", in.ProductID, "err", err)
		}
	}
	return it, nil
}

func (s *Service) buildDelivery(in DeliveryInput, now time.Time) Delivery {
	d := Delivery{Type: strings.TrimSpace(in.Type), Instructions: in.Instructions}
	if d.Type == "" {
		d.Type = defaultDeliveryType
	}
	if in.ExpectedTime != nil {
		t := *in.ExpectedTime
		d.ExpectedTime = &t
	} else {
		t := now.Add(defaultDeliveryETA)
		d.ExpectedTime = &t
	}
	return d
}

// persistNew consumes the coupon, runs beforeInsert (gateway call), inserts with
// public-id retry and broadcasts orders:new. The coupon is released if anything
// after consumption fails.
func (s *Service) persistNew(ctx context.Context, o *Order, beforeInsert func() error) error {
	consumed := false
	if o.CouponCode != "" && o.Pricing.CouponDiscount > 0 && s.coupons != nil {
		ok, err := s.coupons.MarkUsed(ctx, o.UserID, o.CouponCode)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: coupon %s already used", ErrConflict, o.CouponCode)
		}
		consumed = true
	}

	err := func() error {
		if beforeInsert != nil {
			if err := beforeInsert(); err != nil {
				return err
			}
		}
		return s.insertWithRetry(ctx, o)
	}()
	if err != nil {
		if consumed {
			if rerr := s.coupons.Release(ctx, o.UserID, o.CouponCode); rerr != nil {
				s.log.Warn("coupon release failed", "user_id", o.UserID, "code", o.CouponCode, "err", rerr)
			}
		}
		return err
	}

	s.log.Info("order placed", "order_id", o.OrderID, "user_id", o.UserID, "method", o.Payment.Method,
		"grand_total", o.Pricing.GrandTotal)
	s.events.Broadcast(ctx, EventNew, o, o.UserID, o.CategoryFor())
	return nil
}

func (s *Service) insertWithRetry(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		o.OrderID = s.newID()
		err := s.store.Create(ctx, o)
		if !errors.Is(err, ErrDuplicateOrderID) {
			return err
		}
		s.log.Warn("order id collision, retrying", "order_id", o.OrderID, "attempt", attempt+1)
	}
	return fmt.Errorf("%w after %d attempts", ErrDuplicateOrderID, maxOrderIDAttempts)
}

// Find resolves an order by internal or public id without access checks.
func (s *Service) Find(ctx context.Context, ref string) (*Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrBadRequest)
	}
	return s.store.FindByRef(ctx, ref)
}

// CountByUser is used by coupon eligibility (first order only).
func (s *Service) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.store.CountByUser(ctx, userID)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(context.Context, string, any, any, string) {}
