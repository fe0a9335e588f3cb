package calculator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// breakoutScalePct is the excess beyond the trailing range, in percent, at
// which BreakoutBias saturates.
const breakoutScalePct = 5.0

// flatEpsilon treats a window whose max-min is below this fraction of the
// price as flat.
const flatEpsilon = 1e-12

// LookbackReturnPct returns the percentage change from closes[i-lookback] to closes[i].
func LookbackReturnPct(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	if i-lookback < 0 || closes[i-lookback] == 0 {
		return nil
	}
	r := (closes[i]/closes[i-lookback] - 1) * 100
	return &r
}

// RangePosition returns where closes[i] sits within the min/max of
// closes[i-lookback..i], clamped to [0,1]. A flat window yields 0.5.
func RangePosition(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	if i-lookback < 0 {
		return nil
	}
	high, low := minMax(closes[i-lookback : i+1])
	pos := position(closes[i], high, low)
	return &pos
}

// RealizedVolatility returns the population standard deviation of the
// lookback simple returns ending at i.
func RealizedVolatility(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	if i-lookback < 0 {
		return nil
	}
	returns := make([]float64, 0, lookback)
	for k := i - lookback + 1; k <= i; k++ {
		if closes[k-1] == 0 {
			return nil
		}
		returns = append(returns, closes[k]/closes[k-1]-1)
	}
	vol := stat.PopStdDev(returns, nil)
	return &vol
}

// AnnualizedVolatility scales RealizedVolatility by sqrt(periodsPerYear).
func AnnualizedVolatility(closes []float64, i, lookback int, periodsPerYear float64) *float64 {
	vol := RealizedVolatility(closes, i, lookback)
	if vol == nil {
		return nil
	}
	ann := *vol * math.Sqrt(periodsPerYear)
	return &ann
}

// TrendEfficiency returns |net displacement| / sum of |single-step moves| over
// the lookback ending at i, clamped to [0,1]. 1 means a monotonic move.
func TrendEfficiency(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	if i-lookback < 0 {
		return nil
	}
	var path float64
	for k := i - lookback + 1; k <= i; k++ {
		path += math.Abs(closes[k] - closes[k-1])
	}
	eff := 0.0
	if path > 0 {
		eff = clamp(math.Abs(closes[i]-closes[i-lookback])/path, 0, 1)
	}
	return &eff
}

// BreakoutBias scores closes[i] against the trailing range closes[i-lookback..i-1]:
// above the high it is in (0.5, 1], below the low in [-1, -0.5), and inside the
// range it is the centered position in [-0.5, 0.5].
func BreakoutBias(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	if i-lookback < 0 {
		return nil
	}
	high, low := minMax(closes[i-lookback : i])
	c := closes[i]

	var bias float64
	switch {
	case c > high && high > 0:
		excess := (c/high - 1) * 100
		bias = 0.5 + 0.5*clamp(excess/breakoutScalePct, 0, 1)
	case c < low && low > 0:
		deficit := (1 - c/low) * 100
		bias = -0.5 - 0.5*clamp(deficit/breakoutScalePct, 0, 1)
	default:
		bias = position(c, high, low) - 0.5
		if high-low <= flatEpsilon*math.Abs(high) {
			bias = 0
		}
	}
	return &bias
}

// StretchFromSMA returns the percentage distance of closes[i] from the simple
// average of the lookback closes ending at i.
func StretchFromSMA(closes []float64, i, lookback int) *float64 {
	mustIndex(closes, i, lookback)
	sma := SMA(closes[:i+1], lookback)
	if sma == nil || *sma == 0 {
		return nil
	}
	s := (closes[i] / *sma - 1) * 100
	return &s
}

// position maps current into [0,1] within [low, high], 0.5 if the range is flat.
func position(current, high, low float64) float64 {
	if high-low <= flatEpsilon*math.Abs(high) {
		return 0.5
	}
	return clamp((current-low)/(high-low), 0, 1)
}

func minMax(window []float64) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, v := range window {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return high, low
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func mustIndex(closes []float64, i, lookback int) {
	mustPeriod(lookback)
	if i < 0 || i >= len(closes) {
		panic(fmt.Sprintf("calculator: index %d out of range [0,%d)", i, len(closes)))
	}
}
