package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for strategy-lab.
type Config struct {
	Port string

	// Database
	DBPath string

	// Logging / localization
	Language string // "en" or "zh"
	LogLevel string
	LogJSON  bool

	// Auth
	JWTSecret string
	// RateLimit is the per-IP request rate of the HTTP API; 0 disables it.
	RateLimit float64
	// RequestTimeout bounds every /api request, optimizations included; 0 disables it.
	RequestTimeout time.Duration

	// Market data
	DataSource       string // "binance", "csv" or "mock"
	DataDir          string
	DataCacheTTL     time.Duration
	BinanceTestnet   bool
	BinanceRateLimit float64 // requests per second

	// Simulation
	InitialBalance        float64
	CommissionPct         float64
	EquityPct             float64
	ZeroSizeFallbackUnits int64

	// Optimizer
	OptimizerWorkers int
	OptimizerSeed    int64
	PresetsPath      string

	// Live trading
	LivePollInterval time.Duration
	LiveWindow       int
	PaperBalance     float64
	PaperLotSize     float64
	SignalBatchSize  int
	SignalFlush      time.Duration

	// Risk limits on live entries
	RiskEnabled        bool
	RiskMaxDailyTrades int
	RiskMaxDailyLoss   float64
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DBPath:                getEnv("DB_PATH", "./data/strategy-lab.db"),
		Language:              getEnv("LANGUAGE", "en"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogJSON:               getEnv("LOG_JSON", "false") == "true",
		JWTSecret:             os.Getenv("JWT_SECRET"),
		RateLimit:             getEnvFloat("API_RATE_LIMIT", 20),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 2*time.Minute),
		DataSource:            strings.ToLower(getEnv("DATA_SOURCE", "binance")),
		DataDir:               getEnv("DATA_DIR", "./data/bars"),
		DataCacheTTL:          getEnvDuration("DATA_CACHE_TTL", 5*time.Minute),
		BinanceTestnet:        getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceRateLimit:      getEnvFloat("BINANCE_RATE_LIMIT", 10),
		InitialBalance:        getEnvFloat("INITIAL_BALANCE", 100000),
		CommissionPct:         getEnvFloat("COMMISSION_PCT", 0.05),
		EquityPct:             getEnvFloat("EQUITY_PCT", 100),
		ZeroSizeFallbackUnits: int64(getEnvInt("ZERO_SIZE_FALLBACK_UNITS", 0)),
		OptimizerWorkers:      getEnvInt("OPTIMIZER_WORKERS", 0),
		OptimizerSeed:         int64(getEnvInt("OPTIMIZER_SEED", 0)),
		PresetsPath:           getEnv("PRESETS_PATH", "./strategies.yaml"),
		LivePollInterval:      getEnvDuration("LIVE_POLL_INTERVAL", time.Minute),
		LiveWindow:            getEnvInt("LIVE_WINDOW", 500),
		PaperBalance:          getEnvFloat("PAPER_BALANCE", 10000),
		PaperLotSize:          getEnvFloat("PAPER_LOT_SIZE", 1),
		SignalBatchSize:       getEnvInt("SIGNAL_BATCH_SIZE", 50),
		SignalFlush:           getEnvDuration("SIGNAL_FLUSH_INTERVAL", time.Second),
		RiskEnabled:           getEnv("RISK_ENABLED", "true") == "true",
		RiskMaxDailyTrades:    getEnvInt("RISK_MAX_DAILY_TRADES", 20),
		RiskMaxDailyLoss:      getEnvFloat("RISK_MAX_DAILY_LOSS", 0),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.DataSource {
	case "binance", "csv", "mock":
	default:
		return fmt.Errorf("DATA_SOURCE must be binance, csv or mock, got %q", c.DataSource)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive, got %v", c.InitialBalance)
	}
	if c.CommissionPct < 0 {
		return fmt.Errorf("COMMISSION_PCT must not be negative, got %v", c.CommissionPct)
	}
	if c.EquityPct <= 0 || c.EquityPct > 100 {
		return fmt.Errorf("EQUITY_PCT must be in (0, 100], got %v", c.EquityPct)
	}
	if c.LiveWindow < 100 {
		return fmt.Errorf("LIVE_WINDOW must be at least 100, got %d", c.LiveWindow)
	}
	if c.RiskMaxDailyTrades < 0 || c.RiskMaxDailyLoss < 0 {
		return fmt.Errorf("RISK_MAX_DAILY_TRADES and RISK_MAX_DAILY_LOSS must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.LivePollInterval <= 0 {
		return fmt.Errorf("LIVE_POLL_INTERVAL must be positive, got %s", c.LivePollInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
