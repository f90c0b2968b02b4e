// README: Profile, address book and reverse geocoding handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/customer"
)

type CustomerHandler struct {
	customer *customer.Service
}

func NewCustomerHandler(svc *customer.Service) *CustomerHandler {
	return &CustomerHandler{customer: svc}
}

func (h *CustomerHandler) Me(c *gin.Context) {
	cu, err := h.customer.Get(c.Request.Context(), caller(c).ID())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "user": cu})
}

type profileReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpsertProfile creates the profile row on first login.
func (h *CustomerHandler) UpsertProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if err := h.customer.Ensure(c.Request.Context(), caller(c).ID(), req.Name, req.Phone); err != nil {
		writeDomainError(c, err)
		return
	}
	h.Me(c)
}

func (h *CustomerHandler) SaveAddress(c *gin.Context) {
	var a customer.Address
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, "invalid json")
		return
	}
	addrs, err := h.customer.SaveAddress(c.Request.Context(), caller(c).ID(), a)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "addresses": addrs})
}

func (h *CustomerHandler) ReverseGeocode(c *gin.Context) {
	lat, lng := queryFloat(c, "latitude"), queryFloat(c, "longitude")
	if lat == nil || lng == nil {
		badRequest(c, "latitude and longitude are required")
		return
	}
	addr, err := h.customer.Reverse(c.Request.Context(), *lat, *lng)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "address": addr})
}
