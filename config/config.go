package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App         `json:"app"         toml:"app"`
		HTTP        `json:"http"        toml:"http"`
		DB          `json:"db"          toml:"db"`
		Redis       `json:"redis"       toml:"redis"`
		Razorpay    `json:"razorpay"    toml:"razorpay"`
		Idempotency `json:"idempotency" toml:"idempotency"`
		Workers     `json:"workers"     toml:"workers"`
		Log         `json:"logger"      toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME" env-default:"ordering"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port           string `json:"port"            toml:"port"            env:"HTTP_PORT" env-default:"8080"`
		AllowedOrigins string `json:"allowed_origins" toml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL" env-required:"true"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-default:"20"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"30"`
	}

	Redis struct {
		RedisURL string `json:"redis_url" toml:"redis_url" env:"REDIS_URL" env-required:"true"`
	}

	// Razorpay holds gateway credentials. KeySecret signs per-payment
	// verification signatures, WebhookSecret signs webhook bodies; the two
	// are distinct key material.
	Razorpay struct {
		KeyID         string `json:"key_id"         toml:"key_id"         env:"RAZORPAY_KEY_ID"`
		KeySecret     string `json:"key_secret"     toml:"key_secret"     env:"RAZORPAY_KEY_SECRET"`
		WebhookSecret string `json:"webhook_secret" toml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET"`
		APIURL        string `json:"api_url"        toml:"api_url"        env:"RAZORPAY_API_URL" env-default:"https://api.razorpay.com/v1"`
		Currency      string `json:"currency"       toml:"currency"       env:"RAZORPAY_CURRENCY" env-default:"INR"`
	}

	Idempotency struct {
		TTLSeconds int `json:"ttl_seconds" toml:"ttl_seconds" env:"IDEMPOTENCY_TTL_SECONDS" env-default:"60"`
		// FailOpen lets checkout proceed without dedup when the cache is
		// unreachable. Off by default: a blocked checkout is cheaper than a
		// duplicate financial intent.
		FailOpen bool `json:"fail_open" toml:"fail_open" env:"IDEMPOTENCY_FAIL_OPEN" env-default:"false"`
	}

	Workers struct {
		PaymentExpiration    int `json:"payment_expiration"     toml:"payment_expiration"     env:"PAYMENT_EXPIRATION_MINUTES" env-default:"30"`
		PaymentSweepInterval int `json:"payment_sweep_interval" toml:"payment_sweep_interval" env:"PAYMENT_SWEEP_INTERVAL_MINUTES" env-default:"5"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		if _, statErr := os.Stat(configJsonPath); statErr == nil {
			if err = cleanenv.ReadConfig(configJsonPath, cfg); err != nil {
				return nil, fmt.Errorf("config error: %w", err)
			}
		}
	}

	if err = cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
