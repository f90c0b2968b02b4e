// README: Order aggregate, status set, payment/delivery value objects and status history.
package order

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"keeva/internal/modules/customer"
	"keeva/internal/modules/identity"
	"keeva/internal/modules/pricing"
)

type Status string

const (
	StatusPending        Status = "Pending"
	StatusAccepted       Status = "Accepted"
	StatusAssigned       Status = "Assigned"
	StatusOutForDelivery Status = "OutForDelivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// AllStatuses is the full status set in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusAccepted, StatusAssigned, StatusOutForDelivery, StatusDelivered, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.TrimSpace(v))
	if !s.Valid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrBadRequest, v)
	}
	return s, nil
}

// Fulfillment partitions orders between the generic delivery flow and the
// category-scoped service-partner flow. An order belongs to exactly one.
type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentService  Fulfillment = "service"
)

func ParseFulfillment(v string) (Fulfillment, error) {
	switch Fulfillment(strings.ToLower(strings.TrimSpace(v))) {
	case "", FulfillmentDelivery:
		return FulfillmentDelivery, nil
	case FulfillmentService:
		return FulfillmentService, nil
	}
	return "", fmt.Errorf("%w: invalid fulfillment %q", ErrBadRequest, v)
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

// ParsePaymentMethod accepts the aliases clients send for the two methods.
func ParsePaymentMethod(v string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "cod", "cash", "cash_on_delivery":
		return PaymentCOD, nil
	case "online", "razorpay", "prepaid":
		return PaymentOnline, nil
	}
	return "", fmt.Errorf("%w: invalid payment method %q", ErrBadRequest, v)
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentDone      PaymentStatus = "Done"
	PaymentCancelled PaymentStatus = "Cancelled"
	PaymentFailed    PaymentStatus = "Failed"
)

type Item struct {
	ProductID  string  `json:"productId"`
	Name       string  `json:"name,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	Discount   float64 `json:"discount"`
	FinalPrice float64 `json:"finalPrice"`
	Image      string  `json:"image,omitempty"`
	Category   string  `json:"category,omitempty"`
}

type Payment struct {
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	TransactionID  string        `json:"transactionId,omitempty"`
	GatewayOrderID string        `json:"gatewayOrderId,omitempty"`
}

type Delivery struct {
	Type         string     `json:"type"`
	ExpectedTime *time.Time `json:"expectedTime,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

// Actor is who applied a status change: a UserRef or a PartnerRef, never both.
type Actor interface {
	actorID() string
}

type UserRef string

type PartnerRef string

func (u UserRef) actorID() string    { return string(u) }
func (p PartnerRef) actorID() string { return string(p) }

// ActorFor maps a caller to the reference kind recorded in history.
func ActorFor(id identity.Identity) Actor {
	if identity.IsPartner(id) {
		return PartnerRef(id.ID())
	}
	return UserRef(id.ID())
}

type HistoryEntry struct {
	Status Status
	By     Actor
	Role   string
	At     time.Time
}

type updatedBy struct {
	User    *string `json:"user"`
	Partner *string `json:"partner"`
	Role    string  `json:"role"`
}

func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	by := updatedBy{Role: h.Role}
	switch a := h.By.(type) {
	case UserRef:
		v := string(a)
		by.User = &v
	case PartnerRef:
		v := string(a)
		by.Partner = &v
	}
	return json.Marshal(struct {
		Status    Status    `json:"status"`
		UpdatedBy updatedBy `json:"updatedBy"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{h.Status, by, h.At})
}

type Order struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"orderId"`
	UserID           string            `json:"user"`
	Category         string            `json:"category,omitempty"`
	Fulfillment      Fulfillment       `json:"fulfillment"`
	Items            []Item            `json:"items"`
	Pricing          pricing.Breakdown `json:"pricing"`
	Address          customer.Snapshot `json:"address"`
	Payment          Payment           `json:"payment"`
	Delivery         Delivery          `json:"delivery"`
	CouponCode       string            `json:"couponCode,omitempty"`
	Status           Status            `json:"status"`
	ServicePartnerID string            `json:"servicePartner,omitempty"`
	History          []HistoryEntry    `json:"statusHistory"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// ChangeStatus applies a status transition and appends the history entry.
// Setting the current status again is a no-op and returns false.
func (o *Order) ChangeStatus(to Status, by Actor, role string, now time.Time) (HistoryEntry, bool, error) {
	if !to.Valid() {
		return HistoryEntry{}, false, fmt.Errorf("%w: invalid status %q", ErrBadRequest, to)
	}
	if by == nil || by.actorID() == "" || strings.TrimSpace(role) == "" {
		return HistoryEntry{}, false, fmt.Errorf("%w: actor id and role are required", ErrBadRequest)
	}
	if to == o.Status {
		return HistoryEntry{}, false, nil
	}
	if to == StatusCancelled && o.Payment.Status != PaymentCancelled {
		o.Payment.Status = PaymentCancelled
	}
	o.Status = to
	e := HistoryEntry{Status: to, By: by, Role: role, At: now}
	o.History = append(o.History, e)
	o.UpdatedAt = now
	return e, true, nil
}

// CategoryFor returns the order category, falling back to the first item category.
func (o *Order) CategoryFor() string {
	if o.Category != "" {
		return o.Category
	}
	for _, it := range o.Items {
		if it.Category != "" {
			return it.Category
		}
	}
	return ""
}

// InCategory reports whether the order or any of its items is in category c.
func (o *Order) InCategory(c string) bool {
	if c == "" {
		return false
	}
	if strings.EqualFold(o.Category, c) {
		return true
	}
	for _, it := range o.Items {
		if strings.EqualFold(it.Category, c) {
			return true
		}
	}
	return false
}

// NewOrderID returns the public order id: ORD + ULID (timestamp prefix + 80 random bits).
func NewOrderID() string {
	return "ORD" + ulid.Make().String()
}
