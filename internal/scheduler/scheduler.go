package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/notifier"
	"SignalDesk/internal/recorder"
	"SignalDesk/internal/signal"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SignalSource is the part of signal.Service the scheduled jobs use.
type SignalSource interface {
	Warm(ctx context.Context) int
	Overview(ctx context.Context) signal.Overview
	Snapshot(ctx context.Context, symbol string) (model.SignalSnapshot, error)
	Backtest(ctx context.Context, symbol string) (backtest.Result, error)
	BacktestAll(ctx context.Context) backtest.Aggregated
	BacktestOptions() backtest.Options
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Source   SignalSource
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Ctx      context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. Jobs run with ctx.
func NewScheduler(ctx context.Context, src SignalSource, n notifier.Notifier, rec recorder.Recorder, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Source:   src,
		Notifier: n,
		Recorder: rec,
		Ctx:      ctx,
		log:      log,
	}
}

// RegisterAll registers the cache refresh, daily check and weekly backtest
// tasks. An empty expression disables that task.
func (s *Scheduler) RegisterAll(refreshCron, dailyCron, weeklyCron string) error {
	tasks := []struct {
		name string
		expr string
		fn   func()
	}{
		{"refresh", refreshCron, func() { s.Refresh(s.Ctx) }},
		{"daily", dailyCron, func() { s.DailyCheck(s.Ctx) }},
		{"weekly", weeklyCron, func() { s.WeeklyBacktest(s.Ctx) }},
	}
	for _, t := range tasks {
		if t.expr == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(t.expr, t.fn); err != nil {
			return fmt.Errorf("register %s task: %w", t.name, err)
		}
		s.log.Debug().Str("task", t.name).Str("expr", t.expr).Msg("task registered")
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Refresh re-fetches the watchlist into the cache.
func (s *Scheduler) Refresh(ctx context.Context) {
	n := s.Source.Warm(ctx)
	s.log.Info().Int("instruments", n).Msg("refresh done")
}

// DailyCheck records today's snapshot of every instrument and announces
// instruments that moved into BUY or SELL since their last recorded status.
// An instrument seen for the first time counts as coming from HOLD.
func (s *Scheduler) DailyCheck(ctx context.Context) {
	s.log.Info().Msg("running daily check")
	ov := s.Source.Overview(ctx)

	changed := 0
	for _, snap := range ov.Signals {
		prev, seen, err := s.Recorder.LastStatus(ctx, snap.Symbol)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", snap.Symbol).Msg("load last status")
			continue
		}
		if !seen {
			prev = model.StatusHold
		}
		if err := s.Recorder.RecordSnapshot(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("symbol", snap.Symbol).Msg("record snapshot")
		}

		cur := snap.Score.Status
		if cur == prev {
			continue
		}
		changed++
		if err := s.Recorder.RecordTransition(ctx, recorder.Transition{
			Symbol: snap.Symbol,
			From:   prev,
			To:     cur,
			Score:  snap.Score.Score,
			Price:  price(snap),
		}); err != nil {
			s.log.Error().Err(err).Str("symbol", snap.Symbol).Msg("record transition")
		}
		s.log.Info().Str("symbol", snap.Symbol).Str("from", string(prev)).Str("to", string(cur)).
			Int("score", snap.Score.Score).Msg("status changed")
		if cur.Directional() {
			s.trySend(ctx, notifier.FormatTransition(prev, snap))
		}
	}

	if len(ov.Missing) > 0 {
		s.log.Warn().Strs("symbols", ov.Missing).Msg("no data for instruments")
	}
	s.log.Info().Int("signals", len(ov.Signals)).Int("changed", changed).Msg("daily check done")
}

// WeeklyBacktest backtests the watchlist, records the aggregate and
// per-instrument runs and sends the report.
func (s *Scheduler) WeeklyBacktest(ctx context.Context) {
	s.log.Info().Msg("running weekly backtest")
	agg := s.Source.BacktestAll(ctx)
	opts := s.Source.BacktestOptions()

	run := func(symbol string, st backtest.Stats) recorder.BacktestRun {
		return recorder.BacktestRun{
			Symbol:     symbol,
			Window:     opts.Window,
			Mode:       opts.Mode,
			EntryDelay: opts.EntryDelay,
			Stats:      st,
		}
	}
	id, err := s.Recorder.RecordBacktestRun(ctx, run(recorder.AggregateSymbol, agg.Stats))
	if err != nil {
		s.log.Error().Err(err).Msg("record backtest run")
	}
	for _, sym := range agg.Symbols {
		if _, err := s.Recorder.RecordBacktestRun(ctx, run(sym, agg.PerSymbol[sym])); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("record backtest run")
		}
	}

	s.trySend(ctx, notifier.FormatBacktestReport(agg))
	s.log.Info().Str("run_id", id).Int("instruments", len(agg.Symbols)).Int("events", agg.Stats.Events).
		Msg("weekly backtest done")
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// "/signal@MyBot BTCUSDT" in group chats
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/signal":
		if len(args) == 0 {
			return "Usage: /signal SYMBOL"
		}
		snap, err := s.Source.Snapshot(ctx, args[0])
		if err != nil {
			return commandError(args[0], err)
		}
		return notifier.FormatSnapshot(snap)
	case "/backtest":
		if len(args) == 0 {
			return "Usage: /backtest SYMBOL"
		}
		res, err := s.Source.Backtest(ctx, args[0])
		if err != nil {
			return commandError(args[0], err)
		}
		return notifier.FormatBacktest(strings.ToUpper(args[0]), res)
	case "/overview":
		return notifier.FormatOverview(s.Source.Overview(ctx))
	default:
		return notifier.FormatHelp()
	}
}

func commandError(symbol string, err error) string {
	switch {
	case errors.Is(err, signal.ErrUnknownSymbol):
		return fmt.Sprintf("❌ %s is not on the watchlist", strings.ToUpper(symbol))
	case errors.Is(err, signal.ErrNoData):
		return fmt.Sprintf("⚠️ No data for %s right now, try again later", strings.ToUpper(symbol))
	default:
		return "❌ Internal error"
	}
}

func price(snap model.SignalSnapshot) float64 {
	if snap.Indicators.Price == nil {
		return 0
	}
	return *snap.Indicators.Price
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.Send(ctx, text); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
