package model

// IndicatorSet is a snapshot of computed values for one series at its last bar.
// A nil field means there was not enough history to compute it.
type IndicatorSet struct {
	Price       *float64           `json:"price" msgpack:"price"`
	MA50        *float64           `json:"ma50" msgpack:"ma50"`
	MA200       *float64           `json:"ma200" msgpack:"ma200"`
	RSI14       *float64           `json:"rsi14" msgpack:"rsi14"`
	MACD        *float64           `json:"macd" msgpack:"macd"`
	MACDSignal  *float64           `json:"macd_signal" msgpack:"macd_signal"`
	MACDHist    *float64           `json:"macd_hist" msgpack:"macd_hist"`
	Volume      *float64           `json:"volume" msgpack:"volume"`
	VolumeAvg20 *float64           `json:"volume_avg20" msgpack:"volume_avg20"`
	VolumeRatio *float64           `json:"volume_ratio" msgpack:"volume_ratio"`
	Trend       TrendFeatures      `json:"trend" msgpack:"trend"`
	Volatility  VolatilityFeatures `json:"volatility" msgpack:"volatility"`
}

// TrendFeatures are derived path statistics over a trailing lookback.
type TrendFeatures struct {
	Lookback        int      `json:"lookback" msgpack:"lookback"`
	ReturnPct       *float64 `json:"return_pct" msgpack:"return_pct"`
	RangePosition   *float64 `json:"range_position" msgpack:"range_position"`
	TrendEfficiency *float64 `json:"trend_efficiency" msgpack:"trend_efficiency"`
	BreakoutBias    *float64 `json:"breakout_bias" msgpack:"breakout_bias"`
	StretchFromSMA  *float64 `json:"stretch_from_sma" msgpack:"stretch_from_sma"`
}

// VolatilityFeatures holds realized volatility of simple returns.
type VolatilityFeatures struct {
	Lookback   int      `json:"lookback" msgpack:"lookback"`
	Realized   *float64 `json:"realized" msgpack:"realized"`
	Annualized *float64 `json:"annualized" msgpack:"annualized"`
}

// Empty reports whether none of the scoring inputs are available.
func (s *IndicatorSet) Empty() bool {
	return s.MA50 == nil && s.MA200 == nil && s.RSI14 == nil && s.MACDHist == nil && s.VolumeRatio == nil
}
