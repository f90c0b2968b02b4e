// README: HTTP router registration.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"keeva/internal/http/handlers"
	"keeva/internal/http/middleware"
	"keeva/internal/infra"
	"keeva/internal/modules/coupon"
	"keeva/internal/modules/customer"
	"keeva/internal/modules/identity"
	"keeva/internal/modules/location"
	"keeva/internal/modules/order"
	"keeva/internal/modules/rating"
	"keeva/internal/modules/search"
)

type RouterDeps struct {
	Verifier  infra.TokenVerifier
	Orders    *order.Service
	Coupons   *coupon.Service
	Ratings   *rating.Service
	Search    *search.Service
	Customers *customer.Service
	Locations *location.Relay
	// Realtime serves the websocket endpoint; it authenticates on its own.
	Realtime http.Handler
	// Ready reports backing store health for /health.
	Ready func(ctx context.Context) error
	Log   *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log))

	r.GET("/health", func(c *gin.Context) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Realtime != nil {
		r.GET("/ws", gin.WrapH(d.Realtime))
	}

	if d.Search != nil {
		sh := handlers.NewSearchHandler(d.Search)
		s := r.Group("/api/search")
		s.GET("", sh.Search)
		s.GET("/advanced", sh.Advanced)
		s.GET("/suggestions", sh.Suggestions)
		s.GET("/trending", sh.Trending)
	}

	api := r.Group("/api", middleware.Auth(d.Verifier))
	customers := middleware.Require(middleware.Customers)
	staff := middleware.Require(middleware.Staff)
	servicePartners := middleware.Require(middleware.ServicePartners)

	oh := handlers.NewOrderHandler(d.Orders)
	api.POST("/orders", customers, oh.Create)
	api.POST("/orders/payment/initiate", customers, oh.InitiatePayment)
	api.POST("/orders/payment/verify", customers, oh.VerifyPayment)
	api.GET("/orders", oh.List)
	api.GET("/orders/:id", oh.Get)
	api.PATCH("/orders/:id/status", oh.UpdateStatus)
	api.POST("/orders/:id/cancel", customers, oh.Cancel)
	api.PATCH("/orders/:id/payment-status", staff, oh.UpdatePaymentStatus)
	api.GET("/service-partner/orders/stats", servicePartners, oh.ServicePartnerStats)
	api.PATCH("/service-partner/orders/:id/status", servicePartners, oh.ServicePartnerStatus)

	if d.Ratings != nil {
		rh := handlers.NewRatingHandler(d.Ratings)
		api.POST("/orders/:id/rate", customers, rh.Rate)
		api.GET("/orders/:id/rating-status", customers, rh.Status)
		api.GET("/riders/:id/ratings", staff, rh.ForRider)
		api.GET("/ratings", middleware.Require(middleware.Admins), rh.All)
		api.GET("/users/:userId/ratings", customers, rh.ForUser)
	}
	if d.Coupons != nil {
		ch := handlers.NewCouponHandler(d.Coupons)
		api.GET("/coupons/eligible", customers, ch.Eligible)
		api.POST("/coupons/apply", customers, ch.Apply)
	}
	if d.Customers != nil {
		cu := handlers.NewCustomerHandler(d.Customers)
		api.GET("/me", customers, cu.Me)
		api.PUT("/me", customers, cu.UpsertProfile)
		api.POST("/me/addresses", customers, cu.SaveAddress)
		api.GET("/geocode/reverse", cu.ReverseGeocode)
	}
	if d.Locations != nil {
		lh := handlers.NewLocationHandler(d.Locations)
		api.POST("/riders/location", middleware.Require(identity.IsPartner), lh.Report)
		api.GET("/riders/nearby", staff, lh.Nearby)
		api.GET("/orders/:id/location", lh.Latest)
	}
	return r
}
