package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8000/api", cfg.BackendBaseURL)
	assert.Equal(t, 15*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "default", cfg.DeliveryZone)
	assert.Equal(t, ":9090", cfg.ServiceListen)
	assert.Equal(t, ":8090", cfg.GatewayListen)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "30")
	t.Setenv("DELIVERY_ZONE", "zone-7")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.BackendBaseURL)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "zone-7", cfg.DeliveryZone)
}

func TestLoad_BadTimeoutFallsBack(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "not-a-number")

	assert.Equal(t, 15*time.Second, Load().BackendTimeout)
}
