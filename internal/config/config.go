// Package config loads the storefront client configuration from a YAML
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Cart    CartConfig    `yaml:"cart"`
	Breaker BreakerConfig `yaml:"breaker"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Log     LogConfig     `yaml:"log"`
	DevAPI  DevAPIConfig  `yaml:"devapi"`
}

type APIConfig struct {
	// BaseURLs are tried in order; a 404 moves on to the next one.
	BaseURLs []string      `yaml:"base_urls"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	AccessToken string `yaml:"access_token"`
	UserID      string `yaml:"user_id"`
	// RefreshPath is resolved against the first base URL.
	RefreshPath string `yaml:"refresh_path"`
}

type CartConfig struct {
	QuantityDebounce time.Duration `yaml:"quantity_debounce"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DevAPIConfig struct {
	Addr string `yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURLs: []string{"http://localhost:8080"},
			Timeout:  30 * time.Second,
		},
		Auth: AuthConfig{RefreshPath: "/api/auth/refresh"},
		Cart: CartConfig{QuantityDebounce: 400 * time.Millisecond},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 10 * time.Second,
		},
		Kafka:  KafkaConfig{Topic: "storefront.checkout"},
		Log:    LogConfig{Level: "info"},
		DevAPI: DevAPIConfig{Addr: ":8080"},
	}
}

// LoadFromFile reads path over the defaults. A missing file is an error.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load returns the defaults, overlaid by path (when non-empty) and then by
// the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STOREFRONT_* variables.
func (c *Config) ApplyEnv() error {
	if v := getEnv("STOREFRONT_API_BASE_URLS", ""); v != "" {
		c.API.BaseURLs = splitList(v)
	}
	c.Auth.AccessToken = getEnv("STOREFRONT_ACCESS_TOKEN", c.Auth.AccessToken)
	c.Auth.UserID = getEnv("STOREFRONT_USER_ID", c.Auth.UserID)
	c.Redis.Addr = getEnv("STOREFRONT_REDIS_ADDR", c.Redis.Addr)
	if v := getEnv("STOREFRONT_KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getEnv("STOREFRONT_KAFKA_TOPIC", c.Kafka.Topic)
	c.Log.Level = getEnv("STOREFRONT_LOG_LEVEL", c.Log.Level)
	c.DevAPI.Addr = getEnv("STOREFRONT_DEVAPI_ADDR", c.DevAPI.Addr)

	var err error
	if c.API.Timeout, err = durationEnv("STOREFRONT_API_TIMEOUT", c.API.Timeout); err != nil {
		return err
	}
	if c.Cart.QuantityDebounce, err = durationEnv("STOREFRONT_QUANTITY_DEBOUNCE", c.Cart.QuantityDebounce); err != nil {
		return err
	}
	if v := getEnv("STOREFRONT_BREAKER_MAX_FAILURES", ""); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("STOREFRONT_BREAKER_MAX_FAILURES: %w", err)
		}
		c.Breaker.MaxFailures = uint32(n)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.API.BaseURLs) == 0 {
		errs = append(errs, errors.New("api.base_urls must not be empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.Cart.QuantityDebounce < 0 {
		errs = append(errs, errors.New("cart.quantity_debounce must not be negative"))
	}
	if c.Breaker.MaxFailures == 0 {
		errs = append(errs, errors.New("breaker.max_failures must be at least 1"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RefreshURL is the refresh endpoint on the first base URL.
func (c *Config) RefreshURL() string {
	if len(c.API.BaseURLs) == 0 {
		return ""
	}
	return strings.TrimSuffix(c.API.BaseURLs[0], "/") + c.Auth.RefreshPath
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
