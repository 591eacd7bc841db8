package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr        string        `env:"RUN_ADDRESS"`
	LogLevel          string        `env:"LOG_LEVEL"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	JWTSecretKey      string        `env:"JWT_SECRET_KEY"`
	VendorAPIURL      string        `env:"VENDOR_API_URL"`
	VendorAPIKey      string        `env:"VENDOR_API_KEY"`
	VendorTimeout     time.Duration `env:"VENDOR_TIMEOUT"`
	PaymentsAPIURL    string        `env:"PAYMENTS_API_URL"`
	PaymentsAPIKey    string        `env:"PAYMENTS_API_KEY"`
	PaymentsIPNSecret string        `env:"PAYMENTS_IPN_SECRET"`
	PaymentsIPNURL    string        `env:"PAYMENTS_IPN_CALLBACK_URL"`
	ReconcileInterval time.Duration `env:"INTENT_RECONCILE_INTERVAL"`
	ReconcileMaxAge   time.Duration `env:"INTENT_RECONCILE_MAX_AGE"`
}

func NewConfig() (Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := Config{}

	flag.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database connection string [env:DATABASE_URI]")
	flag.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to sign tokens [env:JWT_SECRET_KEY]")
	flag.StringVar(&cfg.VendorAPIURL, "v", "https://example-smm-vendor.test/api/v2", "vendor API endpoint [env:VENDOR_API_URL]")
	flag.StringVar(&cfg.VendorAPIKey, "k", "", "vendor API key [env:VENDOR_API_KEY]")
	flag.DurationVar(&cfg.VendorTimeout, "t", 15*time.Second, "vendor request timeout [env:VENDOR_TIMEOUT]")
	flag.StringVar(&cfg.PaymentsAPIURL, "p", "https://api.nowpayments.io/v1", "payment processor API endpoint [env:PAYMENTS_API_URL]")
	flag.StringVar(&cfg.PaymentsAPIKey, "pk", "", "payment processor API key [env:PAYMENTS_API_KEY]")
	flag.StringVar(&cfg.PaymentsIPNSecret, "ps", "", "payment processor IPN secret [env:PAYMENTS_IPN_SECRET]")
	flag.StringVar(&cfg.PaymentsIPNURL, "pc", "", "payment processor IPN callback URL [env:PAYMENTS_IPN_CALLBACK_URL]")
	flag.DurationVar(&cfg.ReconcileInterval, "ri", 1*time.Minute, "pending intent reconcile interval [env:INTENT_RECONCILE_INTERVAL]")
	flag.DurationVar(&cfg.ReconcileMaxAge, "rm", 5*time.Minute, "pending intent age before compensation [env:INTENT_RECONCILE_MAX_AGE]")
	flag.Parse()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	return cfg, nil
}
