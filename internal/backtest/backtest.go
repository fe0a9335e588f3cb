// Package backtest replays the composite scorer over history, detects BUY/SELL
// transitions and measures how they played out.
package backtest

import (
	"fmt"

	"SignalDesk/internal/model"
	"SignalDesk/internal/strategy"
)

// Mode selects how per-bar statuses are computed.
type Mode string

const (
	// ModeRolling evaluates every bar from full-length indicator series in
	// O(N). Averages use exactly the trailing window; EMA, RSI and MACD
	// recurrences are anchored at the start of the series.
	ModeRolling Mode = "rolling"
	// ModeWindowed recomputes the indicator set over the trailing window at
	// every bar in O(N*W).
	ModeWindowed Mode = "windowed"
)

// Default parameters.
const (
	DefaultWindow       = 200
	ConfirmationDelay   = 7
	minBarsBeyondWindow = 2
)

// DefaultHorizons are the forward return horizons in bars.
var DefaultHorizons = []int{7, 30}

// Options configures Run.
type Options struct {
	Window     int
	Horizons   []int
	EntryDelay int // bars between the signal and the entry, 0 or ConfirmationDelay
	Profile    strategy.Profile
	Mode       Mode
	Timestamps []int64 // optional, aligned with closes
}

// DefaultOptions returns rolling-mode options with the default window and horizons.
func DefaultOptions(p strategy.Profile) Options {
	return Options{
		Window:   DefaultWindow,
		Horizons: append([]int(nil), DefaultHorizons...),
		Profile:  p,
		Mode:     ModeRolling,
	}
}

// Result is the outcome of one backtest over one series.
type Result struct {
	Window       int                 `json:"window" msgpack:"window"`
	Mode         Mode                `json:"mode" msgpack:"mode"`
	Profile      string              `json:"profile" msgpack:"profile"`
	EntryDelay   int                 `json:"entry_delay" msgpack:"entry_delay"`
	Bars         int                 `json:"bars" msgpack:"bars"`
	Insufficient bool                `json:"insufficient" msgpack:"insufficient"`
	Events       []model.SignalEvent `json:"events" msgpack:"events"`
	Stats        Stats               `json:"stats" msgpack:"stats"`

	// Statuses and Scores hold the evaluation at every bar; entries before
	// Window-1 are empty.
	Statuses []model.Status `json:"-" msgpack:"statuses"`
	Scores   []int          `json:"-" msgpack:"scores"`
}

// Run evaluates the scorer at every bar from Window-1 on, using only bars up
// to and including that bar, and returns the BUY/SELL transitions found.
//
// Series shorter than Window+2 bars produce an empty, Insufficient result.
// Run panics on a non-positive window, mismatched input lengths, a
// non-positive horizon or a negative entry delay. An unnamed profile scores
// with strategy.Equity.
func Run(closes, volumes []float64, opts Options) Result {
	validate(closes, volumes, opts)
	opts.Profile = opts.Profile.OrDefault()
	if opts.Mode == "" {
		opts.Mode = ModeRolling
	}

	n := len(closes)
	res := Result{
		Window:     opts.Window,
		Mode:       opts.Mode,
		Profile:    opts.Profile.Name,
		EntryDelay: opts.EntryDelay,
		Bars:       n,
		Events:     []model.SignalEvent{},
	}
	if n < opts.Window+minBarsBeyondWindow {
		res.Insufficient = true
		res.Stats = computeStats(nil, opts.Horizons)
		return res
	}

	switch opts.Mode {
	case ModeWindowed:
		res.Scores, res.Statuses = windowedStatuses(closes, volumes, opts.Window, opts.Profile)
	case ModeRolling:
		res.Scores, res.Statuses = rollingStatuses(closes, volumes, opts.Window, opts.Profile)
	default:
		panic(fmt.Sprintf("backtest: unknown mode %q", opts.Mode))
	}

	res.Events = detectEvents(closes, res.Scores, res.Statuses, opts)
	res.Stats = computeStats(res.Events, opts.Horizons)
	return res
}

func validate(closes, volumes []float64, opts Options) {
	if opts.Window <= 0 {
		panic(fmt.Sprintf("backtest: window must be positive, got %d", opts.Window))
	}
	if len(closes) != len(volumes) {
		panic(fmt.Sprintf("backtest: closes and volumes differ in length (%d vs %d)", len(closes), len(volumes)))
	}
	if opts.Timestamps != nil && len(opts.Timestamps) != len(closes) {
		panic(fmt.Sprintf("backtest: %d timestamps for %d closes", len(opts.Timestamps), len(closes)))
	}
	for _, h := range opts.Horizons {
		if h <= 0 {
			panic(fmt.Sprintf("backtest: horizon must be positive, got %d", h))
		}
	}
	if opts.EntryDelay < 0 {
		panic(fmt.Sprintf("backtest: entry delay must not be negative, got %d", opts.EntryDelay))
	}
}

// detectEvents records an event whenever the status changes into BUY or SELL.
// The status before the first evaluated bar counts as HOLD.
func detectEvents(closes []float64, scores []int, statuses []model.Status, opts Options) []model.SignalEvent {
	n := len(closes)
	events := []model.SignalEvent{}
	prev := model.StatusHold

	for i := opts.Window - 1; i < n; i++ {
		st := statuses[i]
		if st != prev && st.Directional() {
			ev := model.SignalEvent{
				Index:      i,
				Status:     st,
				Score:      scores[i],
				Price:      closes[i],
				EntryIndex: i + opts.EntryDelay,
				Forward:    make(map[int]*float64, len(opts.Horizons)),
			}
			if opts.Timestamps != nil {
				ev.Timestamp = opts.Timestamps[i]
			}
			for j := i + 1; j < n; j++ {
				if statuses[j] != st {
					next := j
					ev.NextIndex = &next
					break
				}
			}
			measure(&ev, closes, opts.Horizons)
			events = append(events, ev)
		}
		prev = st
	}
	return events
}

// measure fills the forward and hold returns of an event, aligned with its
// direction.
func measure(ev *model.SignalEvent, closes []float64, horizons []int) {
	entry := ev.EntryIndex
	for _, h := range horizons {
		ev.Forward[h] = alignedReturn(closes, entry, entry+h, ev.Status)
	}
	if ev.NextIndex != nil && entry < *ev.NextIndex {
		ev.HoldReturn = alignedReturn(closes, entry, *ev.NextIndex, ev.Status)
	}
}

// alignedReturn is the percentage move from closes[from] to closes[to],
// negated for SELL. Nil if either index is outside the series.
func alignedReturn(closes []float64, from, to int, st model.Status) *float64 {
	if from >= len(closes) || to >= len(closes) || closes[from] == 0 {
		return nil
	}
	r := (closes[to]/closes[from] - 1) * 100
	if st == model.StatusSell {
		r = -r
	}
	return &r
}
