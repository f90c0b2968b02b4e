// README: Status changes, payment verification and role-scoped listings.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keeva/internal/modules/identity"
)

type ChangeStatusCommand struct {
	Caller   identity.Identity
	OrderRef string
	Status   string
}

type VerifyPaymentCommand struct {
	CustomerID     string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type PaymentStatusCommand struct {
	Caller   identity.Identity
	OrderRef string
	Status   string
}

// StatusEvent is the orders:status payload. Payment fields are only set when
// the event comes from payment verification.
type StatusEvent struct {
	OrderID       string        `json:"orderId"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
}

type PaymentStatusEvent struct {
	OrderID       string        `json:"orderId"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

// ChangeStatus is the role-gated transition used by customers, admins and generic partners.
func (s *Service) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*Order, error) {
	if cmd.Caller == nil {
		return nil, fmt.Errorf("%w: missing caller", ErrForbidden)
	}
	to, err := ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	o, err := s.Find(ctx, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	role := cmd.Caller.Role()
	if !IsTransitionAllowed(role, to) {
		return nil, fmt.Errorf("%w: role %s cannot set status %s", ErrForbidden, role, to)
	}
	switch c := cmd.Caller.(type) {
	case identity.Customer:
		if o.UserID != c.UserID {
			return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
		}
	case identity.GenericPartner:
		if o.Fulfillment == FulfillmentService {
			return nil, fmt.Errorf("%w: service orders are handled by service partners", ErrForbidden)
		}
	}
	return s.apply(ctx, o, to, cmd.Caller, nil)
}

// ServicePartnerChangeStatus is the category-scoped flow. Accepting requires a
// pending, unassigned order in the partner's category and records the assignee;
// every later transition requires the caller to be that assignee.
func (s *Service) ServicePartnerChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*Order, error) {
	sp, ok := cmd.Caller.(identity.ServicePartner)
	if !ok {
		return nil, fmt.Errorf("%w: service partners only", ErrForbidden)
	}
	to, err := ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	if !serviceStatusAllowed(to) {
		return nil, fmt.Errorf("%w: invalid status for service partner", ErrBadRequest)
	}
	o, err := s.Find(ctx, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	if o.Fulfillment != FulfillmentService {
		return nil, fmt.Errorf("%w: not a service order", ErrForbidden)
	}

	if to == StatusAccepted && o.ServicePartnerID == "" {
		if !o.InCategory(sp.Category) {
			return nil, fmt.Errorf("%w: order is outside your category", ErrForbidden)
		}
		if o.Status != StatusPending {
			return nil, fmt.Errorf("%w: order already processed", ErrInvalidState)
		}
		return s.apply(ctx, o, to, sp, func(o *Order) { o.ServicePartnerID = sp.PartnerID })
	}
	if o.ServicePartnerID != sp.PartnerID {
		return nil, fmt.Errorf("%w: order is assigned to another partner", ErrForbidden)
	}
	return s.apply(ctx, o, to, sp, nil)
}

func (s *Service) apply(ctx context.Context, o *Order, to Status, caller identity.Identity, mutate func(*Order)) (*Order, error) {
	prevVersion := o.Version
	entry, changed, err := o.ChangeStatus(to, ActorFor(caller), caller.Role(), s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		if mutate != nil {
			mutate(o)
		}
		if err := s.store.SaveStatus(ctx, o, prevVersion, entry); err != nil {
			return nil, err
		}
		s.log.Info("order status changed", "order_id", o.OrderID, "status", o.Status,
			"role", caller.Role(), "actor", caller.ID())
	}
	s.events.Broadcast(ctx, EventStatus, StatusEvent{OrderID: o.OrderID, Status: o.Status}, o.UserID, o.CategoryFor())
	return o, nil
}

// VerifyPayment checks the gateway signature before touching the order. Payment
// completion never advances the order status.
func (s *Service) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (*Order, error) {
	if cmd.GatewayOrderID == "" || cmd.PaymentID == "" || cmd.Signature == "" {
		return nil, fmt.Errorf("%w: payment verification data is incomplete", ErrBadRequest)
	}
	if s.gateway == nil || !s.gateway.VerifySignature(cmd.GatewayOrderID, cmd.PaymentID, cmd.Signature) {
		return nil, ErrPaymentVerification
	}
	o, err := s.store.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != cmd.CustomerID {
		return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
	}

	if o.Payment.Status != PaymentDone {
		prevVersion := o.Version
		o.Payment.Status = PaymentDone
		o.Payment.TransactionID = cmd.PaymentID
		o.Payment.Method = PaymentOnline
		o.UpdatedAt = s.now()
		if err := s.store.SavePayment(ctx, o, prevVersion); err != nil {
			if !errors.Is(err, ErrConflict) {
				return nil, err
			}
			// A concurrent callback may have completed the payment first.
			latest, ferr := s.store.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
			if ferr != nil || latest.Payment.Status != PaymentDone {
				return nil, err
			}
			o = latest
		} else {
			s.log.Info("payment verified", "order_id", o.OrderID, "transaction_id", cmd.PaymentID)
		}
	}

	s.events.Broadcast(ctx, EventStatus, StatusEvent{
		OrderID:       o.OrderID,
		Status:        o.Status,
		PaymentStatus: o.Payment.Status,
		TransactionID: o.Payment.TransactionID,
	}, o.UserID, o.CategoryFor())
	return o, nil
}

// UpdatePaymentStatus lets admins and delivery partners settle a pending payment.
// Online payments can only become Done through VerifyPayment.
func (s *Service) UpdatePaymentStatus(ctx context.Context, cmd PaymentStatusCommand) (*Order, error) {
	switch cmd.Caller.(type) {
	case identity.Admin, identity.GenericPartner:
	default:
		return nil, fmt.Errorf("%w: partners only", ErrForbidden)
	}
	to := PaymentStatus(strings.TrimSpace(cmd.Status))
	if to != PaymentPending && to != PaymentDone {
		return nil, fmt.Errorf("%w: payment status must be Pending or Done", ErrBadRequest)
	}
	o, err := s.Find(ctx, cmd.OrderRef)
	if err != nil {
		return nil, err
	}
	if o.Payment.Status != PaymentPending {
		return nil, fmt.Errorf("%w: payment is no longer pending", ErrInvalidState)
	}
	if to == PaymentDone && o.Payment.Method != PaymentCOD {
		return nil, fmt.Errorf("%w: online payments are settled by the gateway", ErrInvalidState)
	}

	if to != o.Payment.Status {
		prevVersion := o.Version
		o.Payment.Status = to
		o.UpdatedAt = s.now()
		if err := s.store.SavePayment(ctx, o, prevVersion); err != nil {
			return nil, err
		}
	}
	s.events.Broadcast(ctx, EventPaymentStatus, PaymentStatusEvent{OrderID: o.OrderID, PaymentStatus: o.Payment.Status},
		o.UserID, o.CategoryFor())
	return o, nil
}

// List returns the orders visible to caller. It is also the orders:init snapshot.
func (s *Service) List(ctx context.Context, caller identity.Identity) ([]*Order, error) {
	switch c := caller.(type) {
	case identity.Customer:
		return s.store.List(ctx, ListFilter{UserID: c.UserID})
	case identity.Admin:
		return s.store.List(ctx, ListFilter{})
	case identity.GenericPartner:
		return s.store.List(ctx, ListFilter{
			Statuses:    VisibleStatuses(c.Role()),
			Fulfillment: FulfillmentDelivery,
		})
	case identity.ServicePartner:
		return s.store.List(ctx, ListFilter{
			Fulfillment:      FulfillmentService,
			ServiceCategory:  c.Category,
			ServicePartnerID: c.PartnerID,
		})
	}
	return nil, fmt.Errorf("%w: unknown caller", ErrForbidden)
}

// PartnerStats summarizes the calling service partner's queue.
func (s *Service) PartnerStats(ctx context.Context, caller identity.Identity) (PartnerStats, error) {
	sp, ok := caller.(identity.ServicePartner)
	if !ok {
		return PartnerStats{}, fmt.Errorf("%w: only service partners have a queue", ErrForbidden)
	}
	return s.store.PartnerStats(ctx, sp.Category, sp.PartnerID)
}

// Get returns one order if caller may see it.
func (s *Service) Get(ctx context.Context, caller identity.Identity, ref string) (*Order, error) {
	o, err := s.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch c := caller.(type) {
	case identity.Customer:
		if o.UserID != c.UserID {
			return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
		}
	case identity.GenericPartner:
		if o.Fulfillment == FulfillmentService {
			return nil, fmt.Errorf("%w: service orders are handled by service partners", ErrForbidden)
		}
	case identity.ServicePartner:
		if o.ServicePartnerID != c.PartnerID && !(o.ServicePartnerID == "" && o.InCategory(c.Category)) {
			return nil, fmt.Errorf("%w: order is outside your category", ErrForbidden)
		}
	case nil:
		return nil, fmt.Errorf("%w: missing caller", ErrForbidden)
	}
	return o, nil
}
