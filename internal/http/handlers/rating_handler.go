// README: Rating handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/rating"
)

type RatingHandler struct {
	rating *rating.Service
}

func NewRatingHandler(svc *rating.Service) *RatingHandler {
	return &RatingHandler{rating: svc}
}

type rateReq struct {
	Order *rating.Score `json:"order_rating"`
	Rider *rating.Score `json:"rider_rating"`
}

func (h *RatingHandler) Rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.Order == nil || req.Rider == nil {
		badRequest(c, "order_rating and rider_rating are required")
		return
	}
	p, err := h.rating.Rate(c.Request.Context(), rating.RateCommand{
		UserID:   caller(c).ID(),
		OrderRef: c.Param("id"),
		Order:    *req.Order,
		Rider:    *req.Rider,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ok": true, "ratings": p})
}

func (h *RatingHandler) Status(c *gin.Context) {
	v, err := h.rating.Status(c.Request.Context(), caller(c).ID(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *RatingHandler) ForRider(c *gin.Context) {
	rs, err := h.rating.ForRider(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if rs == nil {
		rs = []rating.RiderRating{}
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "ratings": rs})
}

func (h *RatingHandler) All(c *gin.Context) {
	l, err := h.rating.All(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "ratings": l})
}

func (h *RatingHandler) ForUser(c *gin.Context) {
	l, err := h.rating.ForUser(c.Request.Context(), caller(c).ID(), c.Param("userId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "ratings": l})
}
