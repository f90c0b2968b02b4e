// README: Order handlers: placement, payment, listing and status changes.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/customer"
	"keeva/internal/modules/identity"
	"keeva/internal/modules/order"
	"keeva/internal/modules/pricing"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type itemReq struct {
	ProductID  string   `json:"productId"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"unitPrice"`
	Discount   float64  `json:"discount"`
	FinalPrice *float64 `json:"finalPrice"`
	Image      string   `json:"image"`
	Category   string   `json:"category"`
}

type pricingReq struct {
	Subtotal       *float64 `json:"subtotal"`
	DeliveryFee    *float64 `json:"deliveryFee"`
	CouponDiscount *float64 `json:"couponDiscount"`
	Tax            *float64 `json:"tax"`
	GrandTotal     *float64 `json:"grandTotal"`
}

type placeOrderReq struct {
	Items   []itemReq  `json:"items"`
	Pricing pricingReq `json:"pricing"`
	Payment struct {
		Method string `json:"method"`
	} `json:"payment"`
	Delivery struct {
		Type         string     `json:"type"`
		ExpectedTime *time.Time `json:"expectedTime"`
		Instructions string     `json:"instructions"`
	} `json:"delivery"`
	AddressID   string             `json:"addressId"`
	Address     customer.Overrides `json:"address"`
	CouponCode  string             `json:"couponCode"`
	Category    string             `json:"category"`
	Fulfillment string             `json:"fulfillment"`
}

func (r placeOrderReq) command(customerID string) order.PlaceCommand {
	items := make([]order.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.ItemInput{
			ProductID:  it.ProductID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Discount:   it.Discount,
			FinalPrice: it.FinalPrice,
			Image:      it.Image,
			Category:   it.Category,
		})
	}
	return order.PlaceCommand{
		CustomerID: customerID,
		Items:      items,
		Pricing: pricing.Overrides{
			Subtotal:       r.Pricing.Subtotal,
			DeliveryFee:    r.Pricing.DeliveryFee,
			CouponDiscount: r.Pricing.CouponDiscount,
			Tax:            r.Pricing.Tax,
			GrandTotal:     r.Pricing.GrandTotal,
		},
		PaymentMethod: r.Payment.Method,
		Delivery: order.DeliveryInput{
			Type:         r.Delivery.Type,
			ExpectedTime: r.Delivery.ExpectedTime,
			Instructions: r.Delivery.Instructions,
		},
		AddressID:   r.AddressID,
		Address:     r.Address,
		CouponCode:  r.CouponCode,
		Category:    r.Category,
		Fulfillment: r.Fulfillment,
	}
}

// Create places a cash-on-delivery order.
func (h *OrderHandler) Create(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	o, err := h.order.Place(c.Request.Context(), req.command(caller(c).ID()))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ok": true, "order": o})
}

// InitiatePayment creates the order and, for online payments, the gateway order.
func (h *OrderHandler) InitiatePayment(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.Payment.Method == "" {
		req.Payment.Method = string(order.PaymentOnline)
	}
	checkout, err := h.order.InitiatePayment(c.Request.Context(), req.command(caller(c).ID()))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, checkout)
}

type verifyPaymentReq struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	o, err := h.order.VerifyPayment(c.Request.Context(), order.VerifyPaymentCommand{
		CustomerID:     caller(c).ID(),
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.order.List(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus routes service partners to the category-scoped flow.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "status is required")
		return
	}
	cmd := order.ChangeStatusCommand{Caller: caller(c), OrderRef: c.Param("id"), Status: req.Status}
	var (
		o   *order.Order
		err error
	)
	if _, ok := cmd.Caller.(identity.ServicePartner); ok {
		o, err = h.order.ServicePartnerChangeStatus(c.Request.Context(), cmd)
	} else {
		o, err = h.order.ChangeStatus(c.Request.Context(), cmd)
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}

// ServicePartnerStatus is the dedicated service-partner route.
func (h *OrderHandler) ServicePartnerStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "status is required")
		return
	}
	o, err := h.order.ServicePartnerChangeStatus(c.Request.Context(), order.ChangeStatusCommand{
		Caller:   caller(c),
		OrderRef: c.Param("id"),
		Status:   req.Status,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}

// Cancel is the customer shortcut for setting Cancelled.
func (h *OrderHandler) Cancel(c *gin.Context) {
	o, err := h.order.ChangeStatus(c.Request.Context(), order.ChangeStatusCommand{
		Caller:   caller(c),
		OrderRef: c.Param("id"),
		Status:   string(order.StatusCancelled),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}

func (h *OrderHandler) ServicePartnerStats(c *gin.Context) {
	st, err := h.order.PartnerStats(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "stats": st})
}

type paymentStatusReq struct {
	PaymentStatus string `json:"paymentStatus"`
}

func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	var req paymentStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentStatus == "" {
		badRequest(c, "paymentStatus is required")
		return
	}
	o, err := h.order.UpdatePaymentStatus(c.Request.Context(), order.PaymentStatusCommand{
		Caller:   caller(c),
		OrderRef: c.Param("id"),
		Status:   req.PaymentStatus,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "order": o})
}
