// README: Rider location handlers; HTTP fallback for clients without a socket.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keeva/internal/modules/location"
)

type LocationHandler struct {
	relay *location.Relay
}

func NewLocationHandler(relay *location.Relay) *LocationHandler {
	return &LocationHandler{relay: relay}
}

type locationReq struct {
	OrderID   string   `json:"orderId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *LocationHandler) Report(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		badRequest(c, "orderId, latitude and longitude are required")
		return
	}
	u, err := h.relay.Publish(c.Request.Context(), caller(c).ID(), req.OrderID, *req.Latitude, *req.Longitude)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, u)
}

func (h *LocationHandler) Latest(c *gin.Context) {
	u, err := h.relay.Latest(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, lng := queryFloat(c, "latitude"), queryFloat(c, "longitude")
	if lat == nil || lng == nil {
		badRequest(c, "latitude and longitude are required")
		return
	}
	radius := 5.0
	if r := queryFloat(c, "radiusKm"); r != nil {
		radius = *r
	}
	ids, err := h.relay.Nearby(c.Request.Context(), *lat, *lng, radius)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"riders": ids})
}
