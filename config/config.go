package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// RefreshIntervals are the auto-refresh periods a caller may choose from.
var RefreshIntervals = []int{1, 5, 10, 15, 30}

// Policy is the screening policy. It can be overridden as a block from the
// YAML file named by SCREENER_CONFIG.
type Policy struct {
	Interval           time.Duration `yaml:"interval"`
	BaselineStart      string        `yaml:"baseline_start"`
	BaselineEnd        string        `yaml:"baseline_end"`
	BaselineCandles    int           `yaml:"baseline_candles"`
	MinBaselineCandles int           `yaml:"min_baseline_candles"`
	MinSeriesVolume    int64         `yaml:"min_series_volume"`
	MinSpikeRatio      float64       `yaml:"min_spike_ratio"`
	MinMarketCapCr     float64       `yaml:"min_market_cap_cr"`
	TopN               int           `yaml:"top_n"`
	MinLiveSuccesses   int           `yaml:"min_live_successes"`
	BackfillAbove      int           `yaml:"backfill_above"`
}

// Batching sizes the two orchestrated phases.
type Batching struct {
	VolumeBatchSize int           `yaml:"volume_batch_size"`
	VolumeWorkers   int           `yaml:"volume_workers"`
	CapBatchSize    int           `yaml:"cap_batch_size"`
	CapWorkers      int           `yaml:"cap_workers"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstream: "yahoo" or "angel"
	Provider string

	// Angel One credentials, required only for PROVIDER=angel
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Upstream call policy
	UpstreamRPS      float64
	UpstreamBurst    int
	FetchAttempts    int
	FetchRetryDelay  time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// FX: "fixed" or "yahoo"
	FXProvider string
	USDINRRate float64

	// Universe
	UniverseSymbols    []string
	UniverseListingURL string
	UniverseMaxSymbols int

	// Caches
	SymbolCacheTTL    time.Duration
	MarketCapCacheTTL time.Duration

	Policy   Policy
	Batching Batching

	// Refresh loop
	RefreshIntervalMin     int
	RefreshMarketHoursOnly bool

	// Infrastructure
	HTTPAddr       string
	MetricsAddr    string
	RedisAddr      string
	RedisPassword  string
	RedisResultTTL time.Duration
	LogLevel       string
	LogFile        string

	// Alerts
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Load reads an optional .env file, then the environment, then the optional
// YAML policy overlay, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := &Config{
		Provider: strings.ToLower(getEnv("PROVIDER", "yahoo")),

		AngelAPIKey:     getEnv("ANGEL_API_KEY", ""),
		AngelClientCode: getEnv("ANGEL_CLIENT_CODE", ""),
		AngelPassword:   getEnv("ANGEL_PASSWORD", ""),
		AngelTOTPSecret: getEnv("ANGEL_TOTP_SECRET", ""),

		UpstreamRPS:      getFloat("UPSTREAM_RPS", 4),
		UpstreamBurst:    getInt("UPSTREAM_BURST", 5),
		FetchAttempts:    getInt("FETCH_ATTEMPTS", 3),
		FetchRetryDelay:  getDuration("FETCH_RETRY_DELAY", time.Second),
		BreakerThreshold: getInt("BREAKER_THRESHOLD", 25),
		BreakerCooldown:  getDuration("BREAKER_COOLDOWN", 30*time.Second),

		FXProvider: strings.ToLower(getEnv("FX_PROVIDER", "fixed")),
		USDINRRate: getFloat("USD_INR_RATE", 83),

		UniverseSymbols:    splitList(getEnv("UNIVERSE_SYMBOLS", "")),
		UniverseListingURL: getEnv("UNIVERSE_LISTING_URL", ""),
		UniverseMaxSymbols: getInt("UNIVERSE_MAX_SYMBOLS", 0),

		SymbolCacheTTL:    getDuration("SYMBOL_CACHE_TTL", 24*time.Hour),
		MarketCapCacheTTL: getDuration("MARKET_CAP_CACHE_TTL", time.Hour),

		Policy: Policy{
			Interval:           getDuration("CANDLE_INTERVAL", 5*time.Minute),
			BaselineStart:      getEnv("BASELINE_WINDOW_START", "09:15"),
			BaselineEnd:        getEnv("BASELINE_WINDOW_END", "11:00"),
			BaselineCandles:    getInt("BASELINE_CANDLES", 10),
			MinBaselineCandles: getInt("MIN_BASELINE_CANDLES", 3),
			MinSeriesVolume:    int64(getInt("MIN_SERIES_VOLUME", 100)),
			MinSpikeRatio:      getFloat("MIN_SPIKE_RATIO", 10),
			MinMarketCapCr:     getFloat("MIN_MARKET_CAP_CR", 1000),
			TopN:               getInt("TOP_N", 10),
			MinLiveSuccesses:   getInt("MIN_LIVE_SUCCESSES", 5),
			BackfillAbove:      getInt("BACKFILL_ABOVE", 10),
		},
		Batching: Batching{
			VolumeBatchSize: getInt("VOLUME_BATCH_SIZE", 20),
			VolumeWorkers:   getInt("VOLUME_WORKERS", 10),
			CapBatchSize:    getInt("CAP_BATCH_SIZE", 10),
			CapWorkers:      getInt("CAP_WORKERS", 5),
			InterBatchDelay: getDuration("INTER_BATCH_DELAY", 0),
		},

		RefreshIntervalMin:     getInt("REFRESH_INTERVAL_MIN", 5),
		RefreshMarketHoursOnly: getBool("REFRESH_MARKET_HOURS_ONLY", false),

		HTTPAddr:       getEnv("SCREENER_HTTP_ADDR", ":8080"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisResultTTL: getDuration("REDIS_RESULT_TTL", 30*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
	}

	if path := getEnv("SCREENER_CONFIG", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileOverlay mirrors the YAML layout; absent keys keep the env values.
type fileOverlay struct {
	Policy   *Policy   `yaml:"policy"`
	Batching *Batching `yaml:"batching"`
	Symbols  []string  `yaml:"symbols"`
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	overlay := fileOverlay{Policy: &c.Policy, Batching: &c.Batching}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(overlay.Symbols) > 0 {
		c.UniverseSymbols = overlay.Symbols
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(c.Provider == "yahoo" || c.Provider == "angel", "PROVIDER must be yahoo or angel, got %q", c.Provider)
	if c.Provider == "angel" {
		check(c.AngelAPIKey != "" && c.AngelClientCode != "" && c.AngelPassword != "" && c.AngelTOTPSecret != "",
			"PROVIDER=angel requires ANGEL_API_KEY, ANGEL_CLIENT_CODE, ANGEL_PASSWORD, ANGEL_TOTP_SECRET")
	}
	check(c.FXProvider == "fixed" || c.FXProvider == "yahoo", "FX_PROVIDER must be fixed or yahoo, got %q", c.FXProvider)
	check(c.USDINRRate > 0, "USD_INR_RATE must be > 0")
	check(c.UpstreamRPS > 0, "UPSTREAM_RPS must be > 0")
	check(c.UpstreamBurst >= 1, "UPSTREAM_BURST must be >= 1")
	check(c.FetchAttempts >= 1, "FETCH_ATTEMPTS must be >= 1")
	check(c.Batching.VolumeBatchSize >= 1 && c.Batching.VolumeBatchSize <= 100, "VOLUME_BATCH_SIZE must be in 1..100")
	check(c.Batching.CapBatchSize >= 1 && c.Batching.CapBatchSize <= 100, "CAP_BATCH_SIZE must be in 1..100")
	check(c.Batching.VolumeWorkers >= 1 && c.Batching.CapWorkers >= 1, "worker counts must be >= 1")
	check(c.Policy.Interval > 0, "CANDLE_INTERVAL must be > 0")
	check(c.Policy.BaselineCandles >= 1, "BASELINE_CANDLES must be >= 1")
	check(c.Policy.MinBaselineCandles >= 1 && c.Policy.MinBaselineCandles <= c.Policy.BaselineCandles,
		"MIN_BASELINE_CANDLES must be in 1..BASELINE_CANDLES")
	check(c.Policy.TopN >= 1, "TOP_N must be >= 1")
	check(ValidRefreshInterval(c.RefreshIntervalMin), "REFRESH_INTERVAL_MIN must be one of %v", RefreshIntervals)
	check(c.SymbolCacheTTL > 0 && c.MarketCapCacheTTL > 0, "cache TTLs must be > 0")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ValidRefreshInterval reports whether minutes is an allowed refresh period.
func ValidRefreshInterval(minutes int) bool {
	for _, m := range RefreshIntervals {
		if m == minutes {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
