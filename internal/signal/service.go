// Package signal serves current signals and backtests for the watchlist,
// computed from provider data behind the read-through cache.
package signal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/cache"
	"SignalDesk/internal/calculator"
	"SignalDesk/internal/collector"
	"SignalDesk/internal/model"
	"SignalDesk/internal/strategy"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownSymbol is returned for symbols outside the watchlist.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrNoData is returned when no price history could be obtained.
	ErrNoData = errors.New("no data available")
)

// Options configures a Service.
type Options struct {
	Watchlist          []model.Instrument
	Profiles           map[string]strategy.Profile // keyed by market
	SeriesTTL          time.Duration
	SignalTTL          time.Duration
	SignalRevalidate   time.Duration
	BacktestTTL        time.Duration
	BacktestRevalidate time.Duration
	Backtest           backtest.Options // Profile and Timestamps are set per instrument
	Concurrency        int
}

// Service computes snapshots and backtests on demand.
type Service struct {
	opts      Options
	collector *collector.Collector
	cache     *cache.Cache
	log       zerolog.Logger
	index     map[string]model.Instrument
}

// NewService creates a Service.
func NewService(opts Options, col *collector.Collector, c *cache.Cache, log zerolog.Logger) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = collector.DefaultConcurrency
	}
	if opts.Backtest.Window <= 0 {
		opts.Backtest.Window = backtest.DefaultWindow
	}
	if opts.Backtest.Horizons == nil {
		opts.Backtest.Horizons = append([]int(nil), backtest.DefaultHorizons...)
	}
	if opts.Backtest.Mode == "" {
		opts.Backtest.Mode = backtest.ModeRolling
	}
	index := make(map[string]model.Instrument, len(opts.Watchlist))
	for _, inst := range opts.Watchlist {
		index[strings.ToUpper(inst.Symbol)] = inst
	}
	return &Service{
		opts:      opts,
		collector: col,
		cache:     c,
		log:       log.With().Str("component", "signal").Logger(),
		index:     index,
	}
}

// Watchlist returns the configured instruments.
func (s *Service) Watchlist() []model.Instrument {
	return s.opts.Watchlist
}

// Lookup finds a watchlist instrument by symbol, case-insensitively.
func (s *Service) Lookup(symbol string) (model.Instrument, error) {
	inst, ok := s.index[strings.ToUpper(symbol)]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return inst, nil
}

// Profile returns the scoring profile for an instrument's market.
func (s *Service) Profile(inst model.Instrument) strategy.Profile {
	if p, ok := s.opts.Profiles[string(inst.Market)]; ok {
		return p
	}
	return strategy.ForMarket(inst.Market)
}

// BacktestOptions returns the backtest settings shared by every instrument.
func (s *Service) BacktestOptions() backtest.Options {
	return s.opts.Backtest
}

func seriesKey(inst model.Instrument) string {
	return fmt.Sprintf("series:%s:%s", inst.Market, inst.Symbol)
}

func signalKey(inst model.Instrument) string {
	return fmt.Sprintf("signal:%s:%s", inst.Market, inst.Symbol)
}

func (s *Service) backtestKey(inst model.Instrument) string {
	bt := s.opts.Backtest
	return fmt.Sprintf("backtest:%s:%s:%d:%d:%s", inst.Market, inst.Symbol, bt.Window, bt.EntryDelay, bt.Mode)
}

// series returns the cached price history of inst, fetching it on a miss.
func (s *Service) series(ctx context.Context, inst model.Instrument) (*model.PriceSeries, error) {
	return cache.GetOrRefresh(ctx, s.cache, seriesKey(inst), s.opts.SeriesTTL, s.opts.SignalRevalidate,
		func(ctx context.Context) (*model.PriceSeries, error) {
			series, err := s.collector.Collect(ctx, inst)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoData, err)
			}
			return series, nil
		})
}

// Snapshot returns the current signal of a watchlist symbol.
func (s *Service) Snapshot(ctx context.Context, symbol string) (model.SignalSnapshot, error) {
	inst, err := s.Lookup(symbol)
	if err != nil {
		return model.SignalSnapshot{}, err
	}
	return s.SnapshotFor(ctx, inst)
}

// SnapshotFor returns the current signal of inst.
func (s *Service) SnapshotFor(ctx context.Context, inst model.Instrument) (model.SignalSnapshot, error) {
	return cache.GetOrRefresh(ctx, s.cache, signalKey(inst), s.opts.SignalTTL, s.opts.SignalRevalidate,
		func(ctx context.Context) (model.SignalSnapshot, error) {
			series, err := s.series(ctx, inst)
			if err != nil {
				return model.SignalSnapshot{}, err
			}
			return s.buildSnapshot(inst, series), nil
		})
}

func (s *Service) buildSnapshot(inst model.Instrument, series *model.PriceSeries) model.SignalSnapshot {
	p := s.Profile(inst)
	set := calculator.ComputeIndicatorSetWith(series.Closes, series.Volumes, p.PeriodsPerYear)
	snap := model.SignalSnapshot{
		Symbol:       inst.Symbol,
		Market:       inst.Market,
		Indicators:   set,
		Score:        strategy.ComputeScore(set, p),
		Insufficient: set.Empty(),
		Bars:         series.Len(),
	}
	if n := series.Len(); n > 0 {
		snap.AsOf = time.Unix(series.Timestamps[n-1], 0).UTC()
	}
	return snap
}

// Backtest runs the configured backtest over a watchlist symbol's history.
func (s *Service) Backtest(ctx context.Context, symbol string) (backtest.Result, error) {
	inst, err := s.Lookup(symbol)
	if err != nil {
		return backtest.Result{}, err
	}
	return s.BacktestFor(ctx, inst)
}

// BacktestFor runs the configured backtest over inst's history.
func (s *Service) BacktestFor(ctx context.Context, inst model.Instrument) (backtest.Result, error) {
	return cache.GetOrRefresh(ctx, s.cache, s.backtestKey(inst), s.opts.BacktestTTL, s.opts.BacktestRevalidate,
		func(ctx context.Context) (backtest.Result, error) {
			series, err := s.series(ctx, inst)
			if err != nil {
				return backtest.Result{}, err
			}
			opts := s.opts.Backtest
			opts.Profile = s.Profile(inst)
			opts.Timestamps = series.Timestamps
			return backtest.Run(series.Closes, series.Volumes, opts), nil
		})
}

// Overview is the current signal of every watchlist instrument that has data.
type Overview struct {
	Signals []model.SignalSnapshot `json:"signals"`
	Missing []string               `json:"missing"`
}

// Overview computes snapshots for the whole watchlist in parallel. Instruments
// without data are listed in Missing.
func (s *Service) Overview(ctx context.Context) Overview {
	snaps := make([]*model.SignalSnapshot, len(s.opts.Watchlist))
	s.forEach(ctx, func(ctx context.Context, i int, inst model.Instrument) {
		snap, err := s.SnapshotFor(ctx, inst)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("snapshot unavailable")
			return
		}
		snaps[i] = &snap
	})

	ov := Overview{Signals: []model.SignalSnapshot{}, Missing: []string{}}
	for i, snap := range snaps {
		if snap == nil {
			ov.Missing = append(ov.Missing, s.opts.Watchlist[i].Symbol)
			continue
		}
		ov.Signals = append(ov.Signals, *snap)
	}
	return ov
}

// BacktestAll backtests the whole watchlist and aggregates the results.
// Instruments without data are left out.
func (s *Service) BacktestAll(ctx context.Context) backtest.Aggregated {
	var mu sync.Mutex
	results := make(map[string]backtest.Result, len(s.opts.Watchlist))
	s.forEach(ctx, func(ctx context.Context, _ int, inst model.Instrument) {
		res, err := s.BacktestFor(ctx, inst)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("backtest unavailable")
			return
		}
		mu.Lock()
		results[inst.Symbol] = res
		mu.Unlock()
	})
	return backtest.Aggregate(results, s.opts.Backtest.Horizons)
}

// Warm fetches the whole watchlist in one batch, primes the series and
// signal entries of every instrument that answered and drops expired entries.
func (s *Service) Warm(ctx context.Context) int {
	all := s.collector.CollectAll(ctx, s.opts.Watchlist)
	for _, inst := range s.opts.Watchlist {
		series, ok := all[inst.Symbol]
		if !ok {
			continue
		}
		cache.Put(ctx, s.cache, seriesKey(inst), series, s.opts.SeriesTTL)
		cache.Put(ctx, s.cache, signalKey(inst), s.buildSnapshot(inst, series), s.opts.SignalTTL)
	}
	pruned, err := s.cache.Prune(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("prune cache")
	}
	s.log.Info().Int("warmed", len(all)).Int("watchlist", len(s.opts.Watchlist)).
		Int64("pruned", pruned).Msg("cache warmed")
	return len(all)
}

func (s *Service) forEach(ctx context.Context, fn func(ctx context.Context, i int, inst model.Instrument)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, inst := range s.opts.Watchlist {
		g.Go(func() error {
			fn(gctx, i, inst)
			return nil
		})
	}
	_ = g.Wait()
}
