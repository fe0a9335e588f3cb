package strategy

import (
	"math"

	"SignalDesk/internal/calculator"
	"SignalDesk/internal/model"
)

// MaxScore is the upper bound of the composite score.
const MaxScore = 100

// ComputeScore reduces an indicator set to a 0-100 score and a status.
//
// Each component yields points in [-2,+2], normalized to [0,1] as (p+2)/4 and
// weighted. A missing indicator contributes neutral points at its full weight,
// so scores stay comparable across instruments with different history length.
// An unnamed profile scores with Equity.
func ComputeScore(set model.IndicatorSet, p Profile) model.ScoreResult {
	p = p.OrDefault()
	components := []model.Component{
		scoreMATrend(&set, p),
		scoreMACD(&set, p),
		scoreRSI(&set, p),
		scoreVolume(&set, p),
	}

	var total float64
	for i := range components {
		c := &components[i]
		c.Contribution = c.Weight * (c.Points + 2) / 4 * MaxScore
		total += c.Contribution
	}

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > MaxScore {
		score = MaxScore
	}

	return model.ScoreResult{
		Score:     score,
		Status:    p.StatusFor(score),
		Profile:   p.Name,
		Breakdown: components,
	}
}

// StatusFor maps a score to BUY, HOLD or SELL using the profile thresholds.
func (p Profile) StatusFor(score int) model.Status {
	switch {
	case score >= p.BuyThreshold:
		return model.StatusBuy
	case score <= p.SellThreshold:
		return model.StatusSell
	default:
		return model.StatusHold
	}
}

// Evaluate computes the indicator set of the series and scores it.
func Evaluate(closes, volumes []float64, p Profile) model.ScoreResult {
	p = p.OrDefault()
	return ComputeScore(calculator.ComputeIndicatorSetWith(closes, volumes, p.PeriodsPerYear), p)
}
