package calculator

import "math"

// Standard MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDResult holds the last MACD line, signal line and histogram values.
type MACDResult struct {
	MACD   float64
	Signal float64
	Hist   float64
}

// MACDLines are full-length MACD series aligned with the input. Unavailable
// entries are NaN.
type MACDLines struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
}

// MACD computes the last MACD values. Returns nil if there are fewer than
// slow+signal values.
func MACD(values []float64, fast, slow, signal int) *MACDResult {
	lines := MACDSeries(values, fast, slow, signal)
	n := len(values)
	if n == 0 || math.IsNaN(lines.Hist[n-1]) {
		return nil
	}
	return &MACDResult{MACD: lines.MACD[n-1], Signal: lines.Signal[n-1], Hist: lines.Hist[n-1]}
}

// MACDSeries computes EMA(fast)-EMA(slow) pointwise, its EMA(signal) and the
// histogram. All three are NaN before index slow+signal-1.
func MACDSeries(values []float64, fast, slow, signal int) MACDLines {
	mustPeriod(fast)
	mustPeriod(slow)
	mustPeriod(signal)

	n := len(values)
	lines := MACDLines{MACD: nanSeries(n), Signal: nanSeries(n), Hist: nanSeries(n)}
	if n < slow+signal {
		return lines
	}

	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)

	start := slow - 1
	if fast > slow {
		start = fast - 1
	}
	line := make([]float64, n-start)
	for i := start; i < n; i++ {
		line[i-start] = fastEMA[i] - slowEMA[i]
	}
	signalEMA := EMASeries(line, signal)

	for i := slow + signal - 1; i < n; i++ {
		j := i - start
		if math.IsNaN(signalEMA[j]) {
			continue
		}
		lines.MACD[i] = line[j]
		lines.Signal[i] = signalEMA[j]
		lines.Hist[i] = line[j] - signalEMA[j]
	}
	return lines
}
