package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeva/internal/modules/coupon"
	"keeva/internal/modules/location"
	"keeva/internal/modules/order"
	"keeva/internal/modules/rating"
	"keeva/internal/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: quantity must be positive", order.ErrBadRequest), http.StatusBadRequest, "bad_request"},
		{coupon.ErrInvalid, http.StatusBadRequest, "bad_request"},
		{location.ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{order.ErrPaymentVerification, http.StatusPaymentRequired, "payment_verification"},
		{fmt.Errorf("%w: order belongs to another customer", order.ErrForbidden), http.StatusForbidden, "forbidden"},
		{order.ErrNotFound, http.StatusNotFound, "not_found"},
		{location.ErrNoPosition, http.StatusNotFound, "not_found"},
		{order.ErrConflict, http.StatusConflict, "conflict"},
		{order.ErrInvalidState, http.StatusConflict, "conflict"},
		{rating.ErrConflict, http.StatusConflict, "conflict"},
		{payment.ErrGateway, http.StatusBadGateway, "gateway"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeDomainError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var body errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.kind, body.Kind, tc.err.Error())
	}
}

func TestWriteDomainErrorHidesInternalText(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeDomainError(c, errors.New("dial tcp 10.0.0.3:5432: refused"))

	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Len(t, c.Errors, 1)
}

func TestQueryHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=7&skip=abc&lat=12.5", nil)

	assert.Equal(t, 7, queryInt(c, "limit", 10))
	assert.Equal(t, 3, queryInt(c, "skip", 3))
	if lat := queryFloat(c, "lat"); assert.NotNil(t, lat) {
		assert.Equal(t, 12.5, *lat)
	}
	assert.Nil(t, queryFloat(c, "lng"))
}
