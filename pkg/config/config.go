package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WatchedAddress is one wallet to mirror, parsed from
// MIRROR_WATCHED_ADDRESSES ("0xabc:nickname,0xdef:other").
type WatchedAddress struct {
	Address  string
	Nickname string
}

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	StateDir string

	// Upstream APIs
	GammaAPIURL string
	ClobAPIURL  string
	DataAPIURL  string
	HTTPTimeout time.Duration

	// Strategy (within-market arbitrage)
	MinProfitThresholdPct float64
	MaxTradeSizeUSDC      float64
	MaxRiskPerTradeUSDC   float64
	SlippageTolerancePct  float64
	MinLiquidityUSDC      float64
	PollingInterval       time.Duration
	FeeRateBPS            float64
	MarketTag             string
	MarketLimit           int

	// Paper trading
	PaperEnabled             bool
	PaperStartingBalanceUSDC float64

	// Mirror mode
	MirrorEnabled             bool
	MirrorStartingBalanceUSDC float64
	MirrorPollInterval        time.Duration
	MirrorAddresses           []WatchedAddress

	// DataFeed mode
	DatafeedEnabled             bool
	APIFootballKey              string
	SportradarAPIKey            string
	DatafeedStartingBalanceUSDC float64
	FootballPollInterval        time.Duration
	SportradarPollInterval      time.Duration
	MinEdgePct                  float64
	EntryWindow                 time.Duration
	EdgeTrackerPollInterval     time.Duration
	EdgePriceMoveThreshold      float64

	// Crypto arbitrage mode
	CryptoArbEnabled          bool
	CryptoStartingBalanceUSDC float64
	CryptoScanInterval        time.Duration
	CryptoMinProfitPct        float64
	CryptoMaxPositionUSDC     float64
	CryptoMaxPositionPct      float64
	CryptoMin24hVolumeUSDC    float64
	CryptoMax24hVolumeUSDC    float64
	CryptoOrderBookDepth      int
	CryptoMaxBookAge          time.Duration

	// Execution
	ExecutionMode string // "paper" or "live"

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		StateDir: getEnvOrDefault("STATE_DIR", "logs"),

		// Upstream API defaults
		GammaAPIURL: getEnvOrDefault("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		ClobAPIURL:  getEnvOrDefault("CLOB_API_URL", "https://clob.polymarket.com"),
		DataAPIURL:  getEnvOrDefault("DATA_API_URL", "https://data-api.polymarket.com"),
		HTTPTimeout: getDurationOrDefault("HTTP_TIMEOUT", 10*time.Second),

		// Strategy defaults
		MinProfitThresholdPct: getFloat64OrDefault("MIN_PROFIT_THRESHOLD_PCT", 0.5),
		MaxTradeSizeUSDC:      getFloat64OrDefault("MAX_TRADE_SIZE_USDC", 100.0),
		MaxRiskPerTradeUSDC:   getFloat64OrDefault("MAX_RISK_PER_TRADE_USDC", 200.0),
		SlippageTolerancePct:  getFloat64OrDefault("SLIPPAGE_TOLERANCE_PCT", 1.0),
		MinLiquidityUSDC:      getFloat64OrDefault("MIN_LIQUIDITY_USDC", 50.0),
		PollingInterval:       getDurationOrDefault("POLLING_INTERVAL", 30*time.Second),
		FeeRateBPS:            getFloat64OrDefault("FEE_RATE_BPS", 0),
		MarketTag:             getEnvOrDefault("MARKET_TAG", ""),
		MarketLimit:           getIntOrDefault("MARKET_LIMIT", 200),

		// Paper trading defaults
		PaperEnabled:             getBoolOrDefault("PAPER_MODE_ENABLED", true),
		PaperStartingBalanceUSDC: getFloat64OrDefault("PAPER_STARTING_BALANCE_USDC", 1000.0),

		// Mirror defaults
		MirrorEnabled:             getBoolOrDefault("MIRROR_MODE_ENABLED", false),
		MirrorStartingBalanceUSDC: getFloat64OrDefault("MIRROR_STARTING_BALANCE_USDC", 20000.0),
		MirrorPollInterval:        getDurationOrDefault("MIRROR_POLL_INTERVAL", 30*time.Second),
		MirrorAddresses:           parseWatchedAddresses(os.Getenv("MIRROR_WATCHED_ADDRESSES")),

		// DataFeed defaults
		DatafeedEnabled:             getBoolOrDefault("DATAFEED_MODE_ENABLED", false),
		APIFootballKey:              os.Getenv("API_FOOTBALL_KEY"),
		SportradarAPIKey:            os.Getenv("SPORTRADAR_API_KEY"),
		DatafeedStartingBalanceUSDC: getFloat64OrDefault("DATAFEED_STARTING_BALANCE_USDC", 20000.0),
		FootballPollInterval:        getDurationOrDefault("DATAFEED_POLL_INTERVAL", 15*time.Second),
		SportradarPollInterval:      getDurationOrDefault("SPORTRADAR_POLL_INTERVAL", 30*time.Second),
		MinEdgePct:                  getFloat64OrDefault("DATAFEED_MIN_EDGE_PCT", 5.0),
		EntryWindow:                 getDurationOrDefault("DATAFEED_ENTRY_WINDOW", 45*time.Second),
		EdgeTrackerPollInterval:     getDurationOrDefault("EDGE_TRACKER_POLL_INTERVAL", 3*time.Second),
		EdgePriceMoveThreshold:      getFloat64OrDefault("EDGE_PRICE_MOVE_THRESHOLD", 0.02),

		// Crypto arbitrage defaults
		CryptoArbEnabled:          getBoolOrDefault("CRYPTO_ARB_MODE_ENABLED", false),
		CryptoStartingBalanceUSDC: getFloat64OrDefault("CRYPTO_STARTING_BALANCE_USDC", 10000.0),
		CryptoScanInterval:        getDurationOrDefault("CRYPTO_SCAN_INTERVAL", 30*time.Second),
		CryptoMinProfitPct:        getFloat64OrDefault("CRYPTO_MIN_PROFIT_PCT", 0.3),
		CryptoMaxPositionUSDC:     getFloat64OrDefault("CRYPTO_MAX_POSITION_USDC", 1000.0),
		CryptoMaxPositionPct:      getFloat64OrDefault("CRYPTO_MAX_POSITION_PCT", 0.1),
		CryptoMin24hVolumeUSDC:    getFloat64OrDefault("CRYPTO_MIN_24H_VOLUME_USDC", 100000.0),
		CryptoMax24hVolumeUSDC:    getFloat64OrDefault("CRYPTO_MAX_24H_VOLUME_USDC", 10000000.0),
		CryptoOrderBookDepth:      getIntOrDefault("CRYPTO_ORDER_BOOK_DEPTH", 10),
		CryptoMaxBookAge:          getDurationOrDefault("CRYPTO_MAX_BOOK_AGE", 30*time.Second),

		// Execution defaults
		ExecutionMode: getEnvOrDefault("EXECUTION_MODE", "paper"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "signal"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "signal123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "signal_engine"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid. Fatal config errors
// abort startup before any loop runs.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.GammaAPIURL == "" || c.ClobAPIURL == "" || c.DataAPIURL == "" {
		return fmt.Errorf("upstream API URLs cannot be empty")
	}

	if c.MinProfitThresholdPct <= 0 {
		return fmt.Errorf("MIN_PROFIT_THRESHOLD_PCT must be > 0, got %f", c.MinProfitThresholdPct)
	}

	if c.SlippageTolerancePct < 0 {
		return fmt.Errorf("SLIPPAGE_TOLERANCE_PCT must be >= 0, got %f", c.SlippageTolerancePct)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" {
		return fmt.Errorf("EXECUTION_MODE 'live' requires an order-placement backend; none is configured")
	}

	if c.DatafeedEnabled && c.APIFootballKey == "" && c.SportradarAPIKey == "" {
		return fmt.Errorf("DATAFEED_MODE_ENABLED requires API_FOOTBALL_KEY or SPORTRADAR_API_KEY")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

// parseWatchedAddresses parses "addr:nickname,addr:nickname". Entries
// without a nickname reuse the address.
func parseWatchedAddresses(raw string) []WatchedAddress {
	if raw == "" {
		return nil
	}

	var out []WatchedAddress
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		addr, nickname, found := strings.Cut(entry, ":")
		addr = strings.TrimSpace(addr)
		if !found || strings.TrimSpace(nickname) == "" {
			nickname = addr
		}
		out = append(out, WatchedAddress{
			Address:  strings.ToLower(addr),
			Nickname: strings.TrimSpace(nickname),
		})
	}

	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
