package model

import (
	"math"
	"sort"
	"time"
)

// Market identifies which audience and provider an instrument belongs to.
type Market string

const (
	MarketCrypto Market = "crypto"
	MarketEquity Market = "equity"
)

// Instrument is a watchlist entry.
type Instrument struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Market Market `yaml:"market" json:"market"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"` // optional fetcher override
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds the cleaned daily close/volume history of one symbol.
// Timestamps are unix seconds, strictly increasing.
type PriceSeries struct {
	Symbol     string    `json:"symbol" msgpack:"symbol"`
	Timestamps []int64   `json:"timestamps" msgpack:"timestamps"`
	Closes     []float64 `json:"closes" msgpack:"closes"`
	Volumes    []float64 `json:"volumes" msgpack:"volumes"`
	FetchedAt  time.Time `json:"fetched_at" msgpack:"fetched_at"`
}

// NewPriceSeries drops bars with a non-finite or non-positive close or a
// non-finite volume, orders the rest by time and keeps the last bar for any
// duplicated timestamp.
func NewPriceSeries(symbol string, bars []OHLCV) *PriceSeries {
	clean := make([]OHLCV, 0, len(bars))
	for _, b := range bars {
		if !finite(b.Close) || b.Close <= 0 || !finite(b.Volume) {
			continue
		}
		clean = append(clean, b)
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Time.Before(clean[j].Time) })

	s := &PriceSeries{
		Symbol:     symbol,
		Timestamps: make([]int64, 0, len(clean)),
		Closes:     make([]float64, 0, len(clean)),
		Volumes:    make([]float64, 0, len(clean)),
		FetchedAt:  time.Now(),
	}
	for _, b := range clean {
		ts := b.Time.Unix()
		if n := len(s.Timestamps); n > 0 && s.Timestamps[n-1] == ts {
			s.Closes[n-1] = b.Close
			s.Volumes[n-1] = b.Volume
			continue
		}
		s.Timestamps = append(s.Timestamps, ts)
		s.Closes = append(s.Closes, b.Close)
		s.Volumes = append(s.Volumes, b.Volume)
	}
	return s
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Closes)
}

// Last returns the close of the most recent bar, or 0 for an empty series.
func (s *PriceSeries) Last() float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.Closes[len(s.Closes)-1]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
