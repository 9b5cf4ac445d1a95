package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 400*time.Millisecond, cfg.Cart.QuantityDebounce)
	assert.Equal(t, "http://localhost:8080/api/auth/refresh", cfg.RefreshURL())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	content := `
api:
  base_urls: ["/", "https://shop.example.com/"]
  timeout: 5s
auth:
  access_token: tok
  user_id: "42"
cart:
  quantity_debounce: 250ms
kafka:
  brokers: ["localhost:9092"]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "https://shop.example.com/"}, cfg.API.BaseURLs)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "tok", cfg.Auth.AccessToken)
	assert.Equal(t, "42", cfg.Auth.UserID)
	assert.Equal(t, 250*time.Millisecond, cfg.Cart.QuantityDebounce)
	assert.Equal(t, "storefront.checkout", cfg.Kafka.Topic)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URLS", "http://a, http://b")
	t.Setenv("STOREFRONT_ACCESS_TOKEN", "env-token")
	t.Setenv("STOREFRONT_QUANTITY_DEBOUNCE", "1s")
	t.Setenv("STOREFRONT_BREAKER_MAX_FAILURES", "3")
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, []string{"http://a", "http://b"}, cfg.API.BaseURLs)
	assert.Equal(t, "env-token", cfg.Auth.AccessToken)
	assert.Equal(t, time.Second, cfg.Cart.QuantityDebounce)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestApplyEnv_BadDuration(t *testing.T) {
	t.Setenv("STOREFRONT_API_TIMEOUT", "soon")
	assert.Error(t, DefaultConfig().ApplyEnv())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURLs = nil
	cfg.Breaker.MaxFailures = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_urls")
	assert.Contains(t, err.Error(), "breaker.max_failures")
	assert.Contains(t, err.Error(), "log.level")
}

func TestNewLogger_UsesFieldMap(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	logger := cfg.NewLogger(&buf)
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "info", entry["severity"])
	assert.Contains(t, entry, "timestamp")
}
