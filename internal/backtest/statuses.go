package backtest

import (
	"math"

	"SignalDesk/internal/calculator"
	"SignalDesk/internal/model"
	"SignalDesk/internal/strategy"
)

// rollingStatuses scores every bar from full-length indicator series. An
// indicator that needs more bars than the window is treated as unavailable,
// matching what a trailing-window evaluation would see.
func rollingStatuses(closes, volumes []float64, window int, p strategy.Profile) ([]int, []model.Status) {
	n := len(closes)
	ma50 := maskedSMA(closes, calculator.MAShort, window)
	ma200 := maskedSMA(closes, calculator.MALong, window)
	volAvg := maskedSMA(volumes, calculator.VolumePeriod, window)

	rsi := nanSeriesLike(n)
	if window > calculator.RSIPeriod {
		rsi = calculator.RSISeries(closes, calculator.RSIPeriod)
	}
	hist := nanSeriesLike(n)
	if window >= calculator.MACDSlow+calculator.MACDSignal {
		hist = calculator.MACDSeries(closes, calculator.MACDFast, calculator.MACDSlow, calculator.MACDSignal).Hist
	}

	scores := make([]int, n)
	statuses := make([]model.Status, n)
	for i := window - 1; i < n; i++ {
		set := model.IndicatorSet{
			MA50:     calculator.At(ma50, i),
			MA200:    calculator.At(ma200, i),
			RSI14:    calculator.At(rsi, i),
			MACDHist: calculator.At(hist, i),
		}
		if avg := calculator.At(volAvg, i); avg != nil && *avg != 0 {
			r := volumes[i] / *avg
			set.VolumeRatio = &r
		}
		res := strategy.ComputeScore(set, p)
		scores[i] = res.Score
		statuses[i] = res.Status
	}
	return scores, statuses
}

// windowedStatuses recomputes the indicator set over the trailing window at
// every bar.
func windowedStatuses(closes, volumes []float64, window int, p strategy.Profile) ([]int, []model.Status) {
	n := len(closes)
	scores := make([]int, n)
	statuses := make([]model.Status, n)
	for i := window - 1; i < n; i++ {
		lo := i - window + 1
		res := strategy.Evaluate(closes[lo:i+1], volumes[lo:i+1], p)
		scores[i] = res.Score
		statuses[i] = res.Status
	}
	return scores, statuses
}

func maskedSMA(values []float64, period, window int) []float64 {
	if period > window {
		return nanSeriesLike(len(values))
	}
	return calculator.SMASeries(values, period)
}

func nanSeriesLike(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
