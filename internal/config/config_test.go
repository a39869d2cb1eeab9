package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOREFRONT_DATA_DIR", dir)
	t.Setenv("API_BASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DEVICE_ID", "")
	t.Setenv("CART_FILE", "")
	t.Setenv("TOKEN_FILE", "")
	t.Setenv("CART_MIRROR", "")
	t.Setenv("API_TIMEOUT", "")
	t.Setenv("LOCAL_API_KEY", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:5000/api", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, filepath.Join(dir, "shoppy_cart.json"), cfg.CartFile)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenFile)
	assert.Equal(t, "file", cfg.MirrorBackend)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.NotEmpty(t, cfg.DeviceID)
	assert.Empty(t, cfg.LocalAPIKey)
}

func TestLoad_DeviceIDPersists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOREFRONT_DATA_DIR", dir)
	t.Setenv("DEVICE_ID", "")

	first := Load().DeviceID
	second := Load().DeviceID

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
	data, err := os.ReadFile(filepath.Join(dir, "device_id"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), first)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://shop.example.com/api/")
	t.Setenv("API_TIMEOUT", "3")
	t.Setenv("CATALOG_CACHE_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DEVICE_ID", "kiosk-7")
	t.Setenv("LOCAL_API_KEY", "local-secret")

	cfg := Load()

	assert.Equal(t, "https://shop.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 90*time.Second, cfg.CatalogTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "kiosk-7", cfg.DeviceID)
	assert.Equal(t, "local-secret", cfg.LocalAPIKey)
}

func TestGetDuration_Invalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getDuration("SOME_TIMEOUT", time.Minute))
}
