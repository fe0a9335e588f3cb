package backtest

import (
	"sort"

	"SignalDesk/internal/model"

	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of aligned returns. WinRate, Mean and Median are
// nil when Count is zero.
type Summary struct {
	Count   int      `json:"count" msgpack:"count"`
	Wins    int      `json:"wins" msgpack:"wins"`
	WinRate *float64 `json:"win_rate" msgpack:"win_rate"`
	Mean    *float64 `json:"mean" msgpack:"mean"`
	Median  *float64 `json:"median" msgpack:"median"`
}

// HorizonStats summarizes forward returns at one horizon, overall and per direction.
type HorizonStats struct {
	Horizon int     `json:"horizon" msgpack:"horizon"`
	All     Summary `json:"all" msgpack:"all"`
	Buy     Summary `json:"buy" msgpack:"buy"`
	Sell    Summary `json:"sell" msgpack:"sell"`
}

// Stats is the statistical summary of a list of events.
type Stats struct {
	Events     int            `json:"events" msgpack:"events"`
	BuyEvents  int            `json:"buy_events" msgpack:"buy_events"`
	SellEvents int            `json:"sell_events" msgpack:"sell_events"`
	Horizons   []HorizonStats `json:"horizons" msgpack:"horizons"`
	// Hold summarizes returns from entry until the status changed again.
	Hold HorizonStats `json:"hold" msgpack:"hold"`
}

// ForHorizon returns the stats of horizon h.
func (s Stats) ForHorizon(h int) (HorizonStats, bool) {
	for _, hs := range s.Horizons {
		if hs.Horizon == h {
			return hs, true
		}
	}
	return HorizonStats{}, false
}

func computeStats(events []model.SignalEvent, horizons []int) Stats {
	s := Stats{Events: len(events), Horizons: make([]HorizonStats, 0, len(horizons))}
	for _, ev := range events {
		switch ev.Status {
		case model.StatusBuy:
			s.BuyEvents++
		case model.StatusSell:
			s.SellEvents++
		}
	}
	for _, h := range horizons {
		s.Horizons = append(s.Horizons, summarizeBy(events, h, func(ev model.SignalEvent) *float64 {
			return ev.Forward[h]
		}))
	}
	s.Hold = summarizeBy(events, 0, func(ev model.SignalEvent) *float64 {
		return ev.HoldReturn
	})
	return s
}

func summarizeBy(events []model.SignalEvent, horizon int, pick func(model.SignalEvent) *float64) HorizonStats {
	var all, buy, sell []float64
	for _, ev := range events {
		r := pick(ev)
		if r == nil {
			continue
		}
		all = append(all, *r)
		if ev.Status == model.StatusBuy {
			buy = append(buy, *r)
		} else {
			sell = append(sell, *r)
		}
	}
	return HorizonStats{
		Horizon: horizon,
		All:     summarize(all),
		Buy:     summarize(buy),
		Sell:    summarize(sell),
	}
}

func summarize(returns []float64) Summary {
	s := Summary{Count: len(returns)}
	if len(returns) == 0 {
		return s
	}
	for _, r := range returns {
		if r > 0 {
			s.Wins++
		}
	}
	winRate := float64(s.Wins) / float64(s.Count)
	mean := stat.Mean(returns, nil)
	med := median(returns)
	s.WinRate, s.Mean, s.Median = &winRate, &mean, &med
	return s
}

// median averages the two middle values for even counts; gonum's empirical
// quantile picks one of them instead.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Aggregated pools the events of several instruments.
type Aggregated struct {
	Symbols      []string         `json:"symbols" msgpack:"symbols"`
	Insufficient []string         `json:"insufficient" msgpack:"insufficient"`
	Stats        Stats            `json:"stats" msgpack:"stats"`
	PerSymbol    map[string]Stats `json:"per_symbol" msgpack:"per_symbol"`
}

// Aggregate pools events across instruments and keeps each instrument's own
// stats. Symbols are reported in sorted order.
func Aggregate(results map[string]Result, horizons []int) Aggregated {
	agg := Aggregated{
		Symbols:      make([]string, 0, len(results)),
		Insufficient: []string{},
		PerSymbol:    make(map[string]Stats, len(results)),
	}
	for sym := range results {
		agg.Symbols = append(agg.Symbols, sym)
	}
	sort.Strings(agg.Symbols)

	var pooled []model.SignalEvent
	for _, sym := range agg.Symbols {
		res := results[sym]
		if res.Insufficient {
			agg.Insufficient = append(agg.Insufficient, sym)
		}
		pooled = append(pooled, res.Events...)
		agg.PerSymbol[sym] = computeStats(res.Events, horizons)
	}
	agg.Stats = computeStats(pooled, horizons)
	return agg
}
