package calculator

import (
	"fmt"

	"SignalDesk/internal/model"
)

// Lookbacks and periods used by ComputeIndicatorSet.
const (
	MAShort         = 50
	MALong          = 200
	RSIPeriod       = 14
	VolumePeriod    = 20
	FeatureLookback = 20
)

// DefaultPeriodsPerYear annualizes volatility when no market profile is given.
const DefaultPeriodsPerYear = 252

// ComputeIndicatorSet computes every indicator at the last bar of the given
// closes and volumes. The inputs must be equal length and are not modified.
func ComputeIndicatorSet(closes, volumes []float64) model.IndicatorSet {
	return ComputeIndicatorSetWith(closes, volumes, DefaultPeriodsPerYear)
}

// ComputeIndicatorSetWith is ComputeIndicatorSet with an explicit annualization factor.
func ComputeIndicatorSetWith(closes, volumes []float64, periodsPerYear float64) model.IndicatorSet {
	if len(closes) != len(volumes) {
		panic(fmt.Sprintf("calculator: closes and volumes differ in length (%d vs %d)", len(closes), len(volumes)))
	}

	set := model.IndicatorSet{
		MA50:  SMA(closes, MAShort),
		MA200: SMA(closes, MALong),
		RSI14: RSI(closes, RSIPeriod),
		Trend: model.TrendFeatures{Lookback: FeatureLookback},
		Volatility: model.VolatilityFeatures{
			Lookback: FeatureLookback,
		},
	}
	if len(closes) == 0 {
		return set
	}

	n := len(closes) - 1
	set.Price = ptr(closes[n])
	set.Volume = ptr(volumes[n])

	if m := MACD(closes, MACDFast, MACDSlow, MACDSignal); m != nil {
		set.MACD = ptr(m.MACD)
		set.MACDSignal = ptr(m.Signal)
		set.MACDHist = ptr(m.Hist)
	}

	set.VolumeAvg20 = AvgVolume(volumes, VolumePeriod)
	set.VolumeRatio = ratio(set.Volume, set.VolumeAvg20)

	set.Trend.ReturnPct = LookbackReturnPct(closes, n, FeatureLookback)
	set.Trend.RangePosition = RangePosition(closes, n, FeatureLookback)
	set.Trend.TrendEfficiency = TrendEfficiency(closes, n, FeatureLookback)
	set.Trend.BreakoutBias = BreakoutBias(closes, n, FeatureLookback)
	set.Trend.StretchFromSMA = StretchFromSMA(closes, n, FeatureLookback)

	set.Volatility.Realized = RealizedVolatility(closes, n, FeatureLookback)
	set.Volatility.Annualized = AnnualizedVolatility(closes, n, FeatureLookback, periodsPerYear)

	return set
}

// ratio returns num/den, nil if either is missing or den is zero.
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	r := *num / *den
	return &r
}

func ptr(v float64) *float64 {
	return &v
}
