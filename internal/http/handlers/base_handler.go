// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"keeva/internal/http/middleware"
	"keeva/internal/maps"
	"keeva/internal/modules/coupon"
	"keeva/internal/modules/customer"
	"keeva/internal/modules/identity"
	"keeva/internal/modules/location"
	"keeva/internal/modules/order"
	"keeva/internal/modules/pricing"
	"keeva/internal/modules/rating"
	"keeva/internal/modules/search"
	"keeva/internal/payment"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, kind, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Kind: kind})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, http.StatusBadRequest, "bad_request", msg)
}

type errorKind struct {
	status int
	kind   string
	errs   []error
}

var errorKinds = []errorKind{
	{http.StatusBadRequest, "bad_request", []error{
		order.ErrBadRequest, customer.ErrBadRequest, rating.ErrBadRequest, location.ErrBadRequest,
		coupon.ErrInvalid, search.ErrEmptyQuery, pricing.ErrNegative, customer.ErrNoAddress,
	}},
	{http.StatusPaymentRequired, "payment_verification", []error{order.ErrPaymentVerification}},
	{http.StatusForbidden, "forbidden", []error{order.ErrForbidden, rating.ErrForbidden, identity.ErrUnknownIdentity}},
	{http.StatusNotFound, "not_found", []error{
		order.ErrNotFound, customer.ErrNotFound, coupon.ErrNotFound, rating.ErrRiderNotFound,
		search.ErrProductNotFound, location.ErrNoPosition, maps.ErrNoResult,
	}},
	{http.StatusConflict, "conflict", []error{order.ErrConflict, order.ErrInvalidState, rating.ErrConflict}},
	{http.StatusBadGateway, "gateway", []error{payment.ErrGateway}},
}

// writeDomainError maps a service error to its HTTP status. Unknown errors are 500
// and their text is not exposed.
func writeDomainError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				writeError(c, k.status, k.kind, err.Error())
				return
			}
		}
	}
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal", "internal error")
}

// caller is set by middleware.Auth on every route that reaches a handler.
func caller(c *gin.Context) identity.Identity {
	return middleware.Caller(c)
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

// queryFloat returns nil when key is absent or not a number.
func queryFloat(c *gin.Context, key string) *float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &v
}
