// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"keeva/internal/config"
	httptransport "keeva/internal/http"
	"keeva/internal/infra"
	"keeva/internal/maps"
	"keeva/internal/modules/coupon"
	"keeva/internal/modules/customer"
	"keeva/internal/modules/location"
	"keeva/internal/modules/order"
	"keeva/internal/modules/pricing"
	"keeva/internal/modules/rating"
	"keeva/internal/modules/realtime"
	"keeva/internal/modules/search"
	"keeva/internal/payment"
)

func main() {
	cfg, err := config.Load()
	log := newLogger(cfg.LogLevel)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("keeva-api stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(log)
	return log
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (infra.TokenVerifier, error) {
	if cfg.FirebaseProjectID != "" {
		return infra.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.CredentialsFile)
	}
	return infra.NewJWTVerifier(cfg.JWTSecret), nil
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	hub := realtime.NewHub(log)
	var (
		bus      realtime.Bus = realtime.NewLocalBus(hub)
		redisBus *realtime.RedisBus
		positions location.Positions
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		redisBus = realtime.NewRedisBus(redisClient, cfg.Realtime.Channel, hub, log)
		bus = redisBus
		positions = location.NewStore(redisClient)
	} else {
		log.Warn("KEEVA_REDIS_ADDR not set; events reach local connections only")
	}

	var geocoder customer.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey, "in")
		if err != nil {
			return err
		}
		geocoder = g
	}

	var gateway payment.Gateway
	if cfg.Payment.KeyID != "" && cfg.Payment.Secret != "" {
		gateway = payment.NewRazorpay(cfg.Payment.KeyID, cfg.Payment.Secret)
	} else {
		log.Warn("razorpay keys not set; online payments are disabled")
	}

	customerSvc := customer.NewService(customer.NewStore(dbPool), geocoder, log)
	catalog := search.NewStore(dbPool)
	searchSvc := search.NewService(catalog, log)
	couponSvc := coupon.NewService(coupon.NewStore(dbPool), nil, cfg.Coupon, log)

	orderSvc := order.NewService(order.Deps{
		Store:     order.NewStore(dbPool),
		Pricing:   pricing.NewService(cfg.Pricing),
		Addresses: customerSvc,
		Coupons:   couponSvc,
		Catalog:   catalog,
		Gateway:   gateway,
		Events:    realtime.NewBroadcaster(bus, log),
		Currency:  cfg.Payment.Currency,
		Log:       log,
	})
	couponSvc.SetOrderCounter(orderSvc)

	ratingSvc := rating.NewService(rating.NewStore(dbPool), orderSvc, log)
	relay := location.NewRelay(orderSvc, bus, positions, log)
	ws := realtime.NewGateway(hub, verifier, orderSvc, relay, cfg.Realtime, log)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier:  verifier,
		Orders:    orderSvc,
		Coupons:   couponSvc,
		Ratings:   ratingSvc,
		Search:    searchSvc,
		Customers: customerSvc,
		Locations: relay,
		Realtime:  ws,
		Ready:     dbPool.Ping,
		Log:       log,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		couponSvc.RunExpireSweeper(gctx)
		return nil
	})
	if redisBus != nil {
		g.Go(func() error { return redisBus.Run(gctx) })
	}
	return g.Wait()
}
