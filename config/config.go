// Package config reads the process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is everything the binaries need. Zero-config development works
// against local defaults.
type Config struct {
	// Commerce backend
	BackendBaseURL string
	BackendToken   string
	BackendTimeout time.Duration
	DeliveryZone   string

	// Restate
	ServiceListen     string
	RestateIngressURL string

	// Gateway
	GatewayListen string
	GatewayAPIKey string
}

// Load reads the environment, falling back to development defaults.
func Load() Config {
	return Config{
		BackendBaseURL:    getenv("BACKEND_BASE_URL", "http://localhost:8000/api"),
		BackendToken:      os.Getenv("BACKEND_TOKEN"),
		BackendTimeout:    getduration("BACKEND_TIMEOUT_SECONDS", 15*time.Second),
		DeliveryZone:      getenv("DELIVERY_ZONE", "default"),
		ServiceListen:     getenv("SERVICE_LISTEN", ":9090"),
		RestateIngressURL: getenv("RESTATE_INGRESS_URL", "http://localhost:8080"),
		GatewayListen:     getenv("GATEWAY_LISTEN", ":8090"),
		GatewayAPIKey:     os.Getenv("GATEWAY_API_KEY"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
