package config

import (
	"os"
	"strconv"
	"time"

	"github.com/maxfraid/cs2crap/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Telegram configuration
	BotToken string
	ChatID   string

	// Data file locations
	ItemsDBPath   string
	RefPricesPath string
	ProxyListPath string

	// Redis configuration (opportunity stream, optional)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (rate-limit blocks, optional)
	MemcacheAddr string

	// Scan configuration
	ScanInterval time.Duration
	MinVolume    int

	// Fetch timeout range in seconds
	FetchTimeoutMin float64
	FetchTimeoutMax float64

	// Marketplace endpoints
	SearchRenderURL string
	HistogramURL    string
	RefPricesURL    string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	scanInterval, _ := strconv.Atoi(getEnv("SCAN_INTERVAL_SECONDS", "0"))
	minVolume, _ := strconv.Atoi(getEnv("MIN_VOLUME_24H", "25"))
	timeoutMin, _ := strconv.ParseFloat(getEnv("FETCH_TIMEOUT_MIN", "2"), 64)
	timeoutMax, _ := strconv.ParseFloat(getEnv("FETCH_TIMEOUT_MAX", "4"), 64)

	return Config{
		BotToken:             getEnv("BOT_TOKEN", ""),
		ChatID:               getEnv("CHAT_ID", ""),
		ItemsDBPath:          getEnv("ITEMS_DB_PATH", "data/items_database.csv"),
		RefPricesPath:        getEnv("REF_PRICES_PATH", "data/csgomarket_prices.csv"),
		ProxyListPath:        getEnv("PROXY_LIST_PATH", "data/proxies.txt"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "opportunities"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		ScanInterval:         time.Duration(scanInterval) * time.Second,
		MinVolume:            minVolume,
		FetchTimeoutMin:      timeoutMin,
		FetchTimeoutMax:      timeoutMax,
		SearchRenderURL:      getEnv("SEARCH_RENDER_URL", "https://steamcommunity.com/market/search/render/"),
		HistogramURL:         getEnv("HISTOGRAM_URL", "https://steamcommunity.com/market/itemordershistogram"),
		RefPricesURL:         getEnv("REF_PRICES_URL", "https://market.csgo.com/api/v2/prices/RUB.json"),
		Environment:          getEnv("CS2CRAP_ENVIRONMENT", "development"),
	}
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.NewConfiguration("BOT_TOKEN is required", nil)
	}
	if c.ChatID == "" {
		return errors.NewConfiguration("CHAT_ID is required", nil)
	}
	if c.FetchTimeoutMin <= 0 || c.FetchTimeoutMax < c.FetchTimeoutMin {
		return errors.NewConfiguration("invalid fetch timeout range", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
