package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/retry"
	"SignalDesk/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	DataSource struct {
		Mock       bool   `yaml:"mock"` // serve generated bars instead of calling providers
		BinanceURL string `yaml:"binance_url"`
		YahooURL   string `yaml:"yahoo_url"`
		REST       struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"rest"`
	} `yaml:"data_source"`
	Watchlist []model.Instrument          `yaml:"watchlist"`
	Profiles  map[string]strategy.Profile `yaml:"profiles"`
	Cache     struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		SQLitePath         string        `yaml:"sqlite_path"`
		SeriesTTL          time.Duration `yaml:"series_ttl"`
		SignalTTL          time.Duration `yaml:"signal_ttl"`
		SignalRevalidate   time.Duration `yaml:"signal_revalidate"`
		BacktestTTL        time.Duration `yaml:"backtest_ttl"`
		BacktestRevalidate time.Duration `yaml:"backtest_revalidate"`
		RefreshTimeout     time.Duration `yaml:"refresh_timeout"`
	} `yaml:"cache"`
	Fetch struct {
		Days        int          `yaml:"days"`
		Concurrency int          `yaml:"concurrency"`
		Retry       retry.Policy `yaml:"retry"`
	} `yaml:"fetch"`
	Backtest struct {
		Window     int           `yaml:"window"`
		Horizons   []int         `yaml:"horizons"`
		EntryDelay int           `yaml:"entry_delay"`
		Mode       backtest.Mode `yaml:"mode"`
	} `yaml:"backtest"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DailyCron   string `yaml:"daily_cron"`
		WeeklyCron  string `yaml:"weekly_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	profiles, err := strategy.MergeProfiles(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	cfg.Profiles = profiles
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setBool(&c.Log.Pretty, "LOG_PRETTY")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.DataSource.REST.BaseURL, "REST_BASE_URL")
	setString(&c.DataSource.REST.APIKey, "REST_API_KEY")
	setBool(&c.DataSource.Mock, "MOCK_DATA")
	setString(&c.Proxy, "HTTPS_PROXY")
	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setString(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Cache.SQLitePath, "CACHE_SQLITE_PATH")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.Schedule.RefreshCron, "CRON_REFRESH")
	setString(&c.Schedule.DailyCron, "CRON_DAILY")
	setString(&c.Schedule.WeeklyCron, "CRON_WEEKLY")
	setInt(&c.Fetch.Concurrency, "FETCH_CONCURRENCY")
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist = ParseWatchlist(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.Watchlist) == 0 {
		c.Watchlist = []model.Instrument{
			{Symbol: "BTCUSDT", Market: model.MarketCrypto},
			{Symbol: "ETHUSDT", Market: model.MarketCrypto},
			{Symbol: "SPX500", Market: model.MarketEquity},
		}
	}
	for i := range c.Watchlist {
		c.Watchlist[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Watchlist[i].Symbol))
		if c.Watchlist[i].Market == "" {
			c.Watchlist[i].Market = model.MarketEquity
		}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/cache.db"
	}
	if c.Cache.SeriesTTL == 0 {
		c.Cache.SeriesTTL = 30 * time.Minute
	}
	if c.Cache.SignalTTL == 0 {
		c.Cache.SignalTTL = 15 * time.Minute
	}
	if c.Cache.SignalRevalidate == 0 {
		c.Cache.SignalRevalidate = 5 * time.Minute
	}
	if c.Cache.BacktestTTL == 0 {
		c.Cache.BacktestTTL = 12 * time.Hour
	}
	if c.Cache.BacktestRevalidate == 0 {
		c.Cache.BacktestRevalidate = 2 * time.Hour
	}
	if c.Cache.RefreshTimeout == 0 {
		c.Cache.RefreshTimeout = 45 * time.Second
	}
	if c.Fetch.Days == 0 {
		c.Fetch.Days = 400
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = 4
	}
	def := retry.DefaultPolicy()
	if c.Fetch.Retry.MaxAttempts == 0 {
		c.Fetch.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Fetch.Retry.AttemptTimeout == 0 {
		c.Fetch.Retry.AttemptTimeout = def.AttemptTimeout
	}
	if c.Fetch.Retry.InitialInterval == 0 {
		c.Fetch.Retry.InitialInterval = def.InitialInterval
	}
	if c.Fetch.Retry.MaxInterval == 0 {
		c.Fetch.Retry.MaxInterval = def.MaxInterval
	}
	if c.Fetch.Retry.MaxElapsed == 0 {
		c.Fetch.Retry.MaxElapsed = def.MaxElapsed
	}
	if c.Backtest.Window == 0 {
		c.Backtest.Window = backtest.DefaultWindow
	}
	if len(c.Backtest.Horizons) == 0 {
		c.Backtest.Horizons = append([]int(nil), backtest.DefaultHorizons...)
	}
	if c.Backtest.Mode == "" {
		c.Backtest.Mode = backtest.ModeRolling
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */10 * * * *"
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 5 0 * * *"
	}
	if c.Schedule.WeeklyCron == "" {
		c.Schedule.WeeklyCron = "0 0 8 * * 1"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/signaldesk.db"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, redis or sqlite, got %q", c.Cache.Backend)
	}
	if c.Cache.SignalRevalidate > c.Cache.SignalTTL {
		return fmt.Errorf("cache.signal_revalidate must not exceed cache.signal_ttl")
	}
	if c.Cache.BacktestRevalidate > c.Cache.BacktestTTL {
		return fmt.Errorf("cache.backtest_revalidate must not exceed cache.backtest_ttl")
	}
	seen := make(map[string]bool, len(c.Watchlist))
	for _, inst := range c.Watchlist {
		if inst.Symbol == "" {
			return fmt.Errorf("watchlist: empty symbol")
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("watchlist: duplicate symbol %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.Market != model.MarketCrypto && inst.Market != model.MarketEquity {
			return fmt.Errorf("watchlist: %s has unknown market %q", inst.Symbol, inst.Market)
		}
		if inst.Source == "rest" && c.DataSource.REST.BaseURL == "" {
			return fmt.Errorf("watchlist: %s uses the rest source but data_source.rest.base_url is empty", inst.Symbol)
		}
	}
	if c.Backtest.Window <= 0 {
		return fmt.Errorf("backtest.window must be positive")
	}
	for _, h := range c.Backtest.Horizons {
		if h <= 0 {
			return fmt.Errorf("backtest.horizons must be positive, got %d", h)
		}
	}
	if c.Backtest.EntryDelay != 0 && c.Backtest.EntryDelay != backtest.ConfirmationDelay {
		return fmt.Errorf("backtest.entry_delay must be 0 or %d", backtest.ConfirmationDelay)
	}
	if c.Backtest.Mode != backtest.ModeRolling && c.Backtest.Mode != backtest.ModeWindowed {
		return fmt.Errorf("backtest.mode must be rolling or windowed, got %q", c.Backtest.Mode)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether alerts should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// ParseWatchlist parses "BTCUSDT:crypto,AAPL:equity:rest" entries. The market
// defaults to equity.
func ParseWatchlist(s string) []model.Instrument {
	var out []model.Instrument
	for _, item := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if parts[0] == "" {
			continue
		}
		inst := model.Instrument{Symbol: strings.ToUpper(parts[0]), Market: model.MarketEquity}
		if len(parts) > 1 && parts[1] != "" {
			inst.Market = model.Market(strings.ToLower(parts[1]))
		}
		if len(parts) > 2 {
			inst.Source = parts[2]
		}
		out = append(out, inst)
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
