package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/cache"
	"SignalDesk/internal/collector"
	"SignalDesk/internal/config"
	"SignalDesk/internal/model"
	"SignalDesk/internal/notifier"
	"SignalDesk/internal/recorder"
	"SignalDesk/internal/scheduler"
	"SignalDesk/internal/server"
	sig "SignalDesk/internal/signal"
	"SignalDesk/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	log.Info().Str("config", cfgPath).Msg("SignalDesk starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("init cache store")
	}
	defer closeStore()
	c := cache.New(store, cache.WithLogger(log), cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout))

	col := collector.NewCollector(newRouter(cfg, log), cfg.Fetch.Days, cfg.Fetch.Concurrency, log)

	svc := sig.NewService(sig.Options{
		Watchlist:          cfg.Watchlist,
		Profiles:           cfg.Profiles,
		SeriesTTL:          cfg.Cache.SeriesTTL,
		SignalTTL:          cfg.Cache.SignalTTL,
		SignalRevalidate:   cfg.Cache.SignalRevalidate,
		BacktestTTL:        cfg.Cache.BacktestTTL,
		BacktestRevalidate: cfg.Cache.BacktestRevalidate,
		Backtest: backtest.Options{
			Window:     cfg.Backtest.Window,
			Horizons:   cfg.Backtest.Horizons,
			EntryDelay: cfg.Backtest.EntryDelay,
			Mode:       cfg.Backtest.Mode,
		},
		Concurrency: cfg.Fetch.Concurrency,
	}, col, c, log)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init notifier
	var n notifier.Notifier = notifier.NewLogNotifier(log)
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = tn
	}

	sched := scheduler.NewScheduler(ctx, svc, n, rec, log)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.DailyCron, cfg.Schedule.WeeklyCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	// Prime the cache so the first requests are served warm.
	go sched.Refresh(ctx)
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, running daily check now")
		go sched.DailyCheck(ctx)
	}

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
		Signals:     svc,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	sched.Stop()
	c.Wait()
	log.Info().Msg("SignalDesk stopped")
}

// newRouter registers the providers: Binance for crypto, Yahoo for equities,
// and the REST source when configured. MOCK_DATA replaces them all.
func newRouter(cfg *config.Config, log zerolog.Logger) *collector.Router {
	router := collector.NewRouter()
	if cfg.DataSource.Mock {
		log.Warn().Msg("serving generated mock data")
		return router.Register(&collector.MockFetcher{Price: 100}, model.MarketCrypto, model.MarketEquity)
	}

	opts := collector.HTTPOptions{ProxyURL: cfg.Proxy, Policy: cfg.Fetch.Retry, Logger: log}

	binance := opts
	binance.BaseURL = cfg.DataSource.BinanceURL
	router.Register(collector.NewBinanceFetcher(binance), model.MarketCrypto)

	yahoo := opts
	yahoo.BaseURL = cfg.DataSource.YahooURL
	router.Register(collector.NewYahooFetcher(yahoo), model.MarketEquity)

	if cfg.DataSource.REST.BaseURL != "" {
		rest := opts
		rest.BaseURL = cfg.DataSource.REST.BaseURL
		router.Register(collector.NewRESTFetcher(rest, cfg.DataSource.REST.APIKey))
	}
	return router
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		store := cache.NewRedisStore(client, cfg.Cache.Redis.Prefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("redis cache connected")
		return store, func() { client.Close() }, nil
	case config.CacheSQLite:
		store, err := cache.OpenSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if n, err := store.Prune(ctx); err != nil {
			log.Warn().Err(err).Msg("prune cache")
		} else if n > 0 {
			log.Info().Int64("entries", n).Msg("pruned expired cache entries")
		}
		return store, func() { store.Close() }, nil
	default:
		return cache.NewMemoryStore(time.Now), func() {}, nil
	}
}
