package calculator

import "math"

// RSI computes the Wilder-smoothed relative strength index of values.
// Requires more than period values; returns nil otherwise.
func RSI(values []float64, period int) *float64 {
	mustPeriod(period)
	if len(values) <= period {
		return nil
	}
	return last(RSISeries(values, period))
}

// RSISeries computes Wilder RSI at every index. Entries before index period
// are NaN. The recurrence is anchored at the start of values.
func RSISeries(values []float64, period int) []float64 {
	mustPeriod(period)
	out := nanSeries(len(values))
	if len(values) <= period {
		return out
	}

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	// Wilder smoothing for remaining values
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rsi := 100.0 - 100.0/(1.0+avgGain/avgLoss)
	return math.Max(0, math.Min(100, rsi))
}
