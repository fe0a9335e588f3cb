package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL lets readers query history while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at  INTEGER NOT NULL,
			as_of        INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			market       TEXT NOT NULL,
			price        REAL,
			ma50         REAL,
			ma200        REAL,
			rsi14        REAL,
			macd_hist    REAL,
			volume_ratio REAL,
			score        INTEGER NOT NULL,
			status       TEXT NOT NULL,
			profile      TEXT,
			insufficient INTEGER NOT NULL DEFAULT 0,
			bars         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON signal_snapshots(symbol, recorded_at)`,

		`CREATE TABLE IF NOT EXISTS signal_transitions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			at          INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			score       INTEGER,
			price       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_symbol ON signal_transitions(symbol, at)`,

		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id          TEXT PRIMARY KEY,
			created_at  INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			window_size INTEGER NOT NULL,
			mode        TEXT NOT NULL,
			entry_delay INTEGER NOT NULL,
			events      INTEGER NOT NULL,
			stats_json  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs(created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// nullable converts an optional indicator into a SQL value.
func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r *SQLiteRecorder) RecordSnapshot(ctx context.Context, snap model.SignalSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ind := snap.Indicators
	_, err := r.db.ExecContext(ctx, `INSERT INTO signal_snapshots
		(recorded_at, as_of, symbol, market, price, ma50, ma200, rsi14, macd_hist, volume_ratio,
		 score, status, profile, insufficient, bars)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().UnixMilli(), snap.AsOf.Unix(), snap.Symbol, string(snap.Market),
		nullable(ind.Price), nullable(ind.MA50), nullable(ind.MA200), nullable(ind.RSI14),
		nullable(ind.MACDHist), nullable(ind.VolumeRatio),
		snap.Score.Score, string(snap.Score.Status), snap.Score.Profile, snap.Insufficient, snap.Bars,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordTransition(ctx context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := t.At
	if at.IsZero() {
		at = r.now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO signal_transitions
		(at, symbol, from_status, to_status, score, price) VALUES (?,?,?,?,?,?)`,
		at.UnixMilli(), t.Symbol, string(t.From), string(t.To), t.Score, t.Price,
	)
	if err != nil {
		return fmt.Errorf("insert transition %s: %w", t.Symbol, err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordBacktestRun(ctx context.Context, run BacktestRun) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now()
	}
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO backtest_runs
		(id, created_at, symbol, window_size, mode, entry_delay, events, stats_json)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Symbol, run.Window, string(run.Mode),
		run.EntryDelay, run.Stats.Events, string(stats),
	)
	if err != nil {
		return "", fmt.Errorf("insert backtest run: %w", err)
	}
	return run.ID, nil
}

func (r *SQLiteRecorder) LastStatus(ctx context.Context, symbol string) (model.Status, bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM signal_snapshots
		WHERE symbol = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, symbol,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last status %s: %w", symbol, err)
	}
	return model.Status(status), true, nil
}

func (r *SQLiteRecorder) RecentTransitions(ctx context.Context, symbol string, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT at, symbol, from_status, to_status, score, price
		FROM signal_transitions WHERE symbol = ? ORDER BY at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at int64
		var from, to string
		if err := rows.Scan(&at, &t.Symbol, &from, &to, &t.Score, &t.Price); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From, t.To = model.Status(from), model.Status(to)
		t.At = time.UnixMilli(at).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// BacktestRunStats loads the stats of a recorded run.
func (r *SQLiteRecorder) BacktestRunStats(ctx context.Context, id string) (BacktestRun, error) {
	var run BacktestRun
	var created int64
	var mode, stats string
	err := r.db.QueryRowContext(ctx, `SELECT id, created_at, symbol, window_size, mode, entry_delay, stats_json
		FROM backtest_runs WHERE id = ?`, id,
	).Scan(&run.ID, &created, &run.Symbol, &run.Window, &mode, &run.EntryDelay, &stats)
	if err != nil {
		return BacktestRun{}, fmt.Errorf("load backtest run %s: %w", id, err)
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.Mode = backtest.Mode(mode)
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return BacktestRun{}, fmt.Errorf("decode stats: %w", err)
	}
	return run, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
