package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Config carries the runtime settings of the API server.
type Config struct {
	ServerAddress string
	Environment   string
	PostgresDSN   string

	RateLimit RateLimitConfig
	Anomaly   AnomalyConfig
}

type RateLimitConfig struct {
	Burst     int
	PerSecond int
}

// AnomalyConfig holds the detector tuning knobs. The four thresholds are kept
// independent even though they currently share a default, and the two extreme
// multipliers are intentionally separate (newest-mode vs by-ID re-check).
type AnomalyConfig struct {
	RevenueThreshold float64
	ExpenseThreshold float64
	InvoiceThreshold float64
	TaxThreshold     float64

	BootstrapFloor          float64
	ExtremeMultiplier       float64
	SingleExtremeMultiplier float64
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}
		// missing .env is fine; the environment still applies
	}

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_PER_SECOND", 10)

	viper.SetDefault("ANOMALY_REVENUE_THRESHOLD", 2.5)
	viper.SetDefault("ANOMALY_EXPENSE_THRESHOLD", 2.5)
	viper.SetDefault("ANOMALY_INVOICE_THRESHOLD", 2.5)
	viper.SetDefault("ANOMALY_TAX_THRESHOLD", 2.5)
	viper.SetDefault("ANOMALY_BOOTSTRAP_FLOOR", 1000.0)
	viper.SetDefault("ANOMALY_EXTREME_MULTIPLIER", 5.0)
	viper.SetDefault("ANOMALY_SINGLE_EXTREME_MULTIPLIER", 7.0)

	cfg := &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		PostgresDSN:   viper.GetString("POSTGRES_DSN"),
		RateLimit: RateLimitConfig{
			Burst:     viper.GetInt("RATE_LIMIT_BURST"),
			PerSecond: viper.GetInt("RATE_LIMIT_PER_SECOND"),
		},
		Anomaly: AnomalyConfig{
			RevenueThreshold:        viper.GetFloat64("ANOMALY_REVENUE_THRESHOLD"),
			ExpenseThreshold:        viper.GetFloat64("ANOMALY_EXPENSE_THRESHOLD"),
			InvoiceThreshold:        viper.GetFloat64("ANOMALY_INVOICE_THRESHOLD"),
			TaxThreshold:            viper.GetFloat64("ANOMALY_TAX_THRESHOLD"),
			BootstrapFloor:          viper.GetFloat64("ANOMALY_BOOTSTRAP_FLOOR"),
			ExtremeMultiplier:       viper.GetFloat64("ANOMALY_EXTREME_MULTIPLIER"),
			SingleExtremeMultiplier: viper.GetFloat64("ANOMALY_SINGLE_EXTREME_MULTIPLIER"),
		},
	}
	return cfg, nil
}
