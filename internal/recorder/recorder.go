package recorder

import (
	"context"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
)

// Transition is a status change of one instrument between two daily checks.
type Transition struct {
	Symbol string
	From   model.Status
	To     model.Status
	Score  int
	Price  float64
	At     time.Time
}

// BacktestRun is one recorded backtest, per symbol or aggregated (Symbol "*").
type BacktestRun struct {
	ID         string
	Symbol     string
	Window     int
	Mode       backtest.Mode
	EntryDelay int
	Stats      backtest.Stats
	CreatedAt  time.Time
}

// AggregateSymbol marks a BacktestRun pooled across the watchlist.
const AggregateSymbol = "*"

// Recorder persists signal history for later analysis.
type Recorder interface {
	RecordSnapshot(ctx context.Context, snap model.SignalSnapshot) error
	RecordTransition(ctx context.Context, t Transition) error
	// RecordBacktestRun stores run and returns its generated id.
	RecordBacktestRun(ctx context.Context, run BacktestRun) (string, error)
	// LastStatus returns the most recently recorded status of symbol; ok is
	// false when nothing was recorded yet.
	LastStatus(ctx context.Context, symbol string) (status model.Status, ok bool, err error)
	RecentTransitions(ctx context.Context, symbol string, limit int) ([]Transition, error)
	Close() error
}
