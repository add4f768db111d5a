// The gateway binary serves the mobile client's REST surface and forwards
// each call to the Restate runtime.
package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/pithomlabs/storefront/config"
	"github.com/pithomlabs/storefront/ingress"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger init:", err)
	}
	defer logger.Sync()

	gateway := ingress.New(cfg.RestateIngressURL, cfg.GatewayAPIKey, logger.Named("gateway"))

	logger.Info("starting gateway",
		zap.String("listen", cfg.GatewayListen),
		zap.String("restate", cfg.RestateIngressURL))

	if err := http.ListenAndServe(cfg.GatewayListen, gateway.Router()); err != nil {
		log.Fatal("gateway error:", err)
	}
}
