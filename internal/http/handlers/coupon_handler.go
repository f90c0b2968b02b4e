// README: Coupon handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/coupon"
)

type CouponHandler struct {
	coupon *coupon.Service
}

func NewCouponHandler(svc *coupon.Service) *CouponHandler {
	return &CouponHandler{coupon: svc}
}

func (h *CouponHandler) Eligible(c *gin.Context) {
	code, err := h.coupon.Eligible(c.Request.Context(), caller(c).ID())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if code == "" {
		writeJSON(c, http.StatusOK, gin.H{"ok": true, "eligible": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "eligible": true, "code": code})
}

type applyCouponReq struct {
	Code string `json:"code"`
}

func (h *CouponHandler) Apply(c *gin.Context) {
	var req applyCouponReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		badRequest(c, "code is required")
		return
	}
	cp, err := h.coupon.Apply(c.Request.Context(), caller(c).ID(), req.Code)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "coupon": cp})
}
