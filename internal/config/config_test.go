package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WATCHLIST", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Cache.SignalTTL)
	assert.Equal(t, backtest.DefaultWindow, cfg.Backtest.Window)
	assert.Equal(t, []int{7, 30}, cfg.Backtest.Horizons)
	assert.Equal(t, backtest.ModeRolling, cfg.Backtest.Mode)
	assert.Len(t, cfg.Watchlist, 3)
	assert.Equal(t, strategy.Crypto, cfg.Profiles[strategy.ProfileCrypto])
	assert.EqualValues(t, 3, cfg.Fetch.Retry.MaxAttempts)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
watchlist:
  - symbol: btcusdt
    market: crypto
  - symbol: gold
    source: rest
data_source:
  rest:
    base_url: http://bars.local
cache:
  backend: redis
  redis:
    addr: localhost:6379
  signal_ttl: 10m
  signal_revalidate: 2m
backtest:
  window: 150
  entry_delay: 7
  mode: windowed
profiles:
  equity:
    rsi_band: {low: 35, high: 65}
fetch:
  retry:
    max_attempts: 5
    attempt_timeout: 6s
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("WATCHLIST", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7070", cfg.Server.Addr, "env wins over file")
	assert.Equal(t, []model.Instrument{
		{Symbol: "BTCUSDT", Market: model.MarketCrypto},
		{Symbol: "GOLD", Market: model.MarketEquity, Source: "rest"},
	}, cfg.Watchlist)
	assert.Equal(t, 10*time.Minute, cfg.Cache.SignalTTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SignalRevalidate)
	assert.Equal(t, 150, cfg.Backtest.Window)
	assert.Equal(t, backtest.ModeWindowed, cfg.Backtest.Mode)
	assert.Equal(t, strategy.RSIBand{Low: 35, High: 65}, cfg.Profiles[strategy.ProfileEquity].RSIBand)
	assert.EqualValues(t, 5, cfg.Fetch.Retry.MaxAttempts)
	assert.Equal(t, 6*time.Second, cfg.Fetch.Retry.AttemptTimeout)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_InvalidProfile(t *testing.T) {
	path := writeConfig(t, `
profiles:
  crypto:
    weights: {ma: 0.5, macd: 0.5, rsi: 0.5, volume: 0}
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "weights sum")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Setenv("WATCHLIST", "")
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheRedis }, "redis.addr"},
		{"revalidate beyond ttl", func(c *Config) { c.Cache.SignalRevalidate = time.Hour }, "signal_revalidate"},
		{"duplicate symbol", func(c *Config) { c.Watchlist = append(c.Watchlist, c.Watchlist[0]) }, "duplicate"},
		{"unknown market", func(c *Config) { c.Watchlist[0].Market = "fx" }, "unknown market"},
		{"rest without url", func(c *Config) { c.Watchlist[0].Source = "rest" }, "rest"},
		{"bad entry delay", func(c *Config) { c.Backtest.EntryDelay = 3 }, "entry_delay"},
		{"bad horizon", func(c *Config) { c.Backtest.Horizons = []int{7, -1} }, "horizons"},
		{"bad mode", func(c *Config) { c.Backtest.Mode = "monte-carlo" }, "backtest.mode"},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestParseWatchlist(t *testing.T) {
	got := ParseWatchlist(" btcusdt:crypto, AAPL ,gold:equity:rest,, ")
	assert.Equal(t, []model.Instrument{
		{Symbol: "BTCUSDT", Market: model.MarketCrypto},
		{Symbol: "AAPL", Market: model.MarketEquity},
		{Symbol: "GOLD", Market: model.MarketEquity, Source: "rest"},
	}, got)
}
