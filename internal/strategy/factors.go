package strategy

import (
	"fmt"
	"math"

	"SignalDesk/internal/model"
)

// Component names as they appear in a score breakdown.
const (
	ComponentMA     = "ma_trend"
	ComponentMACD   = "macd"
	ComponentRSI    = "rsi"
	ComponentVolume = "volume"
)

// scoreMATrend scores the spread between the 50 and 200 period averages.
// A spread of +cap or more scores +2, -cap or less scores -2.
func scoreMATrend(set *model.IndicatorSet, p Profile) model.Component {
	c := model.Component{Name: ComponentMA, Weight: p.Weights.MA}
	if set.MA50 == nil || set.MA200 == nil || *set.MA200 == 0 {
		c.Commentary = "MA50/MA200 unavailable"
		return c
	}
	spread := *set.MA50 / *set.MA200 - 1
	c.Points = 2 * clamp(spread, -p.MASpreadCap, p.MASpreadCap) / p.MASpreadCap
	c.Available = true
	c.Commentary = fmt.Sprintf("MA50 %+.1f%% vs MA200", spread*100)
	return c
}

// scoreMACD scores the histogram relative to price level, using MA50 as the
// scale so that the same shape scores the same on any price.
func scoreMACD(set *model.IndicatorSet, p Profile) model.Component {
	c := model.Component{Name: ComponentMACD, Weight: p.Weights.MACD}
	if set.MACDHist == nil || set.MA50 == nil || *set.MA50 == 0 {
		c.Commentary = "MACD unavailable"
		return c
	}
	ratio := *set.MACDHist / *set.MA50
	c.Points = 2 * clamp(ratio/p.MACDTolerance, -1, 1)
	c.Available = true
	c.Commentary = fmt.Sprintf("hist=%.4g", *set.MACDHist)
	return c
}

// scoreRSI maps RSI linearly from the profile band onto [-2,+2].
func scoreRSI(set *model.IndicatorSet, p Profile) model.Component {
	c := model.Component{Name: ComponentRSI, Weight: p.Weights.RSI}
	if set.RSI14 == nil {
		c.Commentary = "RSI unavailable"
		return c
	}
	rsi := *set.RSI14
	band := p.RSIBand
	c.Points = clamp(-2+4*(rsi-band.Low)/(band.High-band.Low), -2, 2)
	c.Available = true
	c.Commentary = fmt.Sprintf("RSI=%.0f", rsi)
	return c
}

// scoreVolume buckets the last volume against its 20 period average.
func scoreVolume(set *model.IndicatorSet, p Profile) model.Component {
	c := model.Component{Name: ComponentVolume, Weight: p.Weights.Volume}
	if set.VolumeRatio == nil {
		c.Commentary = "volume unavailable"
		return c
	}
	r := *set.VolumeRatio
	switch {
	case r >= 1.8:
		c.Points = 2
	case r >= 1.3:
		c.Points = 1
	case r >= 0.8:
		c.Points = 0
	case r > 0.5:
		c.Points = -1
	default:
		c.Points = -2
	}
	c.Available = true
	c.Commentary = fmt.Sprintf("volume x%.2f", r)
	return c
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
