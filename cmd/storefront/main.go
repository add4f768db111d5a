// The storefront binary hosts the cart engine's Restate deployment: the
// CartSession virtual object and the CouponService.
package main

import (
	"context"
	"log"

	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/server"
	"go.uber.org/zap"

	"github.com/pithomlabs/storefront/backend"
	"github.com/pithomlabs/storefront/config"
	"github.com/pithomlabs/storefront/services"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger init:", err)
	}
	defer logger.Sync()

	client := backend.New(
		cfg.BackendBaseURL,
		backend.StaticToken(cfg.BackendToken),
		cfg.BackendTimeout,
		logger.Named("backend"),
	)

	restateServer := server.NewRestate()

	if err := restateServer.Bind(restate.Reflect(services.NewCartSession(client, cfg.DeliveryZone))); err != nil {
		log.Fatal("failed to bind CartSession:", err)
	}
	if err := restateServer.Bind(restate.Reflect(services.NewCouponService(client))); err != nil {
		log.Fatal("failed to bind CouponService:", err)
	}

	logger.Info("starting cart engine",
		zap.String("listen", cfg.ServiceListen),
		zap.String("backend", cfg.BackendBaseURL),
		zap.String("zone", cfg.DeliveryZone))

	if err := restateServer.Start(context.Background(), cfg.ServiceListen); err != nil {
		log.Fatal("server error:", err)
	}
}
