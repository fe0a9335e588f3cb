package model

import "time"

// Status is the tri-state outcome of the composite scorer.
type Status string

const (
	StatusBuy  Status = "BUY"
	StatusHold Status = "HOLD"
	StatusSell Status = "SELL"
)

// Directional reports whether the status is BUY or SELL.
func (s Status) Directional() bool {
	return s == StatusBuy || s == StatusSell
}

// Component is a single scorer input's contribution.
type Component struct {
	Name         string  `json:"name" msgpack:"name"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	Points       float64 `json:"points" msgpack:"points"`             // -2 .. +2
	Contribution float64 `json:"contribution" msgpack:"contribution"` // score units, 0 .. 100*Weight
	Available    bool    `json:"available" msgpack:"available"`
	Commentary   string  `json:"commentary,omitempty" msgpack:"commentary"`
}

// ScoreResult is the final output of the composite scorer.
type ScoreResult struct {
	Score     int         `json:"score" msgpack:"score"`
	Status    Status      `json:"status" msgpack:"status"`
	Profile   string      `json:"profile" msgpack:"profile"`
	Breakdown []Component `json:"breakdown" msgpack:"breakdown"`
}

// SignalEvent is a transition into BUY or SELL found by the backtest.
type SignalEvent struct {
	Index      int              `json:"index" msgpack:"index"`
	Timestamp  int64            `json:"timestamp,omitempty" msgpack:"timestamp"`
	Status     Status           `json:"status" msgpack:"status"`
	Score      int              `json:"score" msgpack:"score"`
	Price      float64          `json:"price" msgpack:"price"`
	NextIndex  *int             `json:"next_index" msgpack:"next_index"`
	EntryIndex int              `json:"entry_index" msgpack:"entry_index"`
	Forward    map[int]*float64 `json:"forward" msgpack:"forward"`         // horizon -> aligned % return
	HoldReturn *float64         `json:"hold_return" msgpack:"hold_return"` // aligned % return until NextIndex
}

// Open reports whether the event has not been closed by a later status change.
func (e SignalEvent) Open() bool {
	return e.NextIndex == nil
}

// SignalSnapshot is the current signal of one instrument as served to callers.
type SignalSnapshot struct {
	Symbol       string       `json:"symbol" msgpack:"symbol"`
	Market       Market       `json:"market" msgpack:"market"`
	Indicators   IndicatorSet `json:"indicators" msgpack:"indicators"`
	Score        ScoreResult  `json:"score" msgpack:"score"`
	Insufficient bool         `json:"insufficient" msgpack:"insufficient"`
	Bars         int          `json:"bars" msgpack:"bars"`
	AsOf         time.Time    `json:"as_of" msgpack:"as_of"`
}
