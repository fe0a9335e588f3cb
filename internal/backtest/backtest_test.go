package backtest

import (
	"testing"

	"SignalDesk/internal/model"
	"SignalDesk/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peakSeries rises one point a day for 200 days from 100, then falls four
// points a day for 60 days. Volume is flat.
func peakSeries() (closes, volumes []float64) {
	for i := 0; i < 200; i++ {
		closes = append(closes, 100+float64(i))
	}
	p := closes[len(closes)-1]
	for i := 0; i < 60; i++ {
		p -= 4
		closes = append(closes, p)
	}
	volumes = make([]float64, len(closes))
	for i := range volumes {
		volumes[i] = 1000
	}
	return closes, volumes
}

func walk(n int, seed uint32) (closes, volumes []float64) {
	price := 100.0
	x := seed
	for i := 0; i < n; i++ {
		x = x*1664525 + 1013904223
		price *= 1 + (float64(x%2001)-1000)/40000
		closes = append(closes, price)
		volumes = append(volumes, 500+float64(x%997))
	}
	return closes, volumes
}

func TestRun_PeakThenCrash(t *testing.T) {
	closes, volumes := peakSeries()
	res := Run(closes, volumes, DefaultOptions(strategy.Crypto))

	require.False(t, res.Insufficient)
	require.Len(t, res.Events, 2)

	buy, sell := res.Events[0], res.Events[1]
	assert.Equal(t, model.StatusBuy, buy.Status)
	assert.Equal(t, 199, buy.Index)
	assert.Equal(t, 80, buy.Score)
	assert.Equal(t, 299.0, buy.Price)
	require.NotNil(t, buy.NextIndex)
	assert.Equal(t, 202, *buy.NextIndex)

	assert.Equal(t, model.StatusSell, sell.Status)
	assert.Equal(t, 244, sell.Index)
	assert.True(t, sell.Open())

	// The market falls after both events: the BUY loses and the SELL wins.
	require.NotNil(t, buy.Forward[7])
	assert.InDelta(t, (271.0/299.0-1)*100, *buy.Forward[7], 1e-9)
	require.NotNil(t, buy.HoldReturn)
	assert.Less(t, *buy.HoldReturn, 0.0)

	require.NotNil(t, sell.Forward[7])
	assert.InDelta(t, -(91.0/119.0-1)*100, *sell.Forward[7], 1e-9)
	assert.Nil(t, sell.Forward[30])
	assert.Nil(t, sell.HoldReturn)

	// ma50 crosses below ma200 only during the decline.
	assert.Equal(t, model.StatusHold, res.Statuses[202])
	assert.Equal(t, model.StatusSell, res.Statuses[len(closes)-1])
}

func TestRun_Stats(t *testing.T) {
	closes, volumes := peakSeries()
	res := Run(closes, volumes, DefaultOptions(strategy.Crypto))

	assert.Equal(t, 2, res.Stats.Events)
	assert.Equal(t, 1, res.Stats.BuyEvents)
	assert.Equal(t, 1, res.Stats.SellEvents)

	h7, ok := res.Stats.ForHorizon(7)
	require.True(t, ok)
	assert.Equal(t, 2, h7.All.Count)
	assert.Equal(t, 1, h7.All.Wins)
	require.NotNil(t, h7.All.WinRate)
	assert.Equal(t, 0.5, *h7.All.WinRate)
	assert.Equal(t, 0, h7.Buy.Wins)
	assert.Equal(t, 1, h7.Sell.Wins)

	h30, ok := res.Stats.ForHorizon(30)
	require.True(t, ok)
	assert.Equal(t, 1, h30.All.Count)
	assert.Equal(t, 0, h30.Sell.Count)
	assert.Nil(t, h30.Sell.Mean)

	assert.Equal(t, 1, res.Stats.Hold.All.Count)
}

func TestRun_ConfirmationDelay(t *testing.T) {
	closes, volumes := peakSeries()
	opts := DefaultOptions(strategy.Crypto)
	opts.EntryDelay = ConfirmationDelay
	res := Run(closes, volumes, opts)
	require.Len(t, res.Events, 2)

	buy := res.Events[0]
	assert.Equal(t, 206, buy.EntryIndex)
	require.NotNil(t, buy.Forward[7])
	assert.InDelta(t, (243.0/271.0-1)*100, *buy.Forward[7], 1e-9)
	assert.Nil(t, buy.HoldReturn, "entry after the status already changed")
}

func TestRun_ModesAgreeOnTrend(t *testing.T) {
	closes, volumes := peakSeries()
	opts := DefaultOptions(strategy.Crypto)
	rolling := Run(closes, volumes, opts)

	opts.Mode = ModeWindowed
	windowed := Run(closes, volumes, opts)

	assert.Equal(t, rolling.Statuses, windowed.Statuses)
	assert.Equal(t, rolling.Events, windowed.Events)
	assert.Equal(t, ModeWindowed, windowed.Mode)
}

func TestRun_NoLookAhead(t *testing.T) {
	closes, volumes := walk(220, 9)
	for _, mode := range []Mode{ModeRolling, ModeWindowed} {
		opts := Options{Window: 60, Horizons: []int{5}, Profile: strategy.Equity, Mode: mode}
		full := Run(closes, volumes, opts)
		for _, end := range []int{61, 62, 100, 150, 219} {
			part := Run(closes[:end+1], volumes[:end+1], opts)
			require.False(t, part.Insufficient)
			assert.Equal(t, full.Statuses[end], part.Statuses[end], "mode %s bar %d", mode, end)
			assert.Equal(t, full.Scores[:end+1], part.Scores, "mode %s bar %d", mode, end)
		}
	}
}

func TestRun_Insufficient(t *testing.T) {
	closes, volumes := peakSeries()
	opts := DefaultOptions(strategy.Crypto)

	res := Run(closes[:201], volumes[:201], opts)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Events)
	assert.NotNil(t, res.Events)
	assert.Len(t, res.Stats.Horizons, 2)

	res = Run(closes[:202], volumes[:202], opts)
	assert.False(t, res.Insufficient)

	res = Run(nil, nil, opts)
	assert.True(t, res.Insufficient)
}

func TestRun_UnnamedProfileUsesEquity(t *testing.T) {
	closes, volumes := peakSeries()
	opts := Options{Window: DefaultWindow, Horizons: DefaultHorizons}

	res := Run(closes, volumes, opts)
	assert.Equal(t, strategy.ProfileEquity, res.Profile)

	opts.Profile = strategy.Equity
	assert.Equal(t, Run(closes, volumes, opts), res)
	assert.Contains(t, res.Statuses, model.StatusSell)
}

func TestRun_Deterministic(t *testing.T) {
	closes, volumes := walk(400, 3)
	opts := Options{Window: 120, Horizons: []int{7, 30}, Profile: strategy.Crypto}
	assert.Equal(t, Run(closes, volumes, opts), Run(closes, volumes, opts))
}

func TestRun_Timestamps(t *testing.T) {
	closes, volumes := peakSeries()
	ts := make([]int64, len(closes))
	for i := range ts {
		ts[i] = 1_700_000_000 + int64(i)*86400
	}
	opts := DefaultOptions(strategy.Crypto)
	opts.Timestamps = ts
	res := Run(closes, volumes, opts)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, ts[199], res.Events[0].Timestamp)
}

func TestRun_Panics(t *testing.T) {
	closes, volumes := peakSeries()
	tests := []struct {
		name string
		run  func()
	}{
		{"zero window", func() { Run(closes, volumes, Options{Window: 0}) }},
		{"length mismatch", func() { Run(closes, volumes[1:], DefaultOptions(strategy.Crypto)) }},
		{"non-positive horizon", func() {
			Run(closes, volumes, Options{Window: 10, Horizons: []int{7, 0}, Profile: strategy.Crypto})
		}},
		{"negative delay", func() {
			Run(closes, volumes, Options{Window: 10, EntryDelay: -1, Profile: strategy.Crypto})
		}},
		{"timestamps mismatch", func() {
			Run(closes, volumes, Options{Window: 10, Timestamps: []int64{1}, Profile: strategy.Crypto})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.run)
		})
	}
}

func BenchmarkRun(b *testing.B) {
	closes, volumes := walk(1500, 1)
	for _, mode := range []Mode{ModeRolling, ModeWindowed} {
		opts := DefaultOptions(strategy.Crypto)
		opts.Mode = mode
		b.Run(string(mode), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Run(closes, volumes, opts)
			}
		})
	}
}
