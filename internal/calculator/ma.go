package calculator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// SMA returns the arithmetic mean of the last period values, or nil if there
// are fewer than period values.
func SMA(values []float64, period int) *float64 {
	mustPeriod(period)
	if len(values) < period {
		return nil
	}
	mean := stat.Mean(values[len(values)-period:], nil)
	return &mean
}

// EMA returns the exponential moving average seeded with the simple average of
// the first period values, or nil if there are fewer than period values.
func EMA(values []float64, period int) *float64 {
	mustPeriod(period)
	if len(values) < period {
		return nil
	}
	return last(EMASeries(values, period))
}

// SMASeries returns a rolling simple moving average aligned with values.
// Entries before index period-1 are NaN.
func SMASeries(values []float64, period int) []float64 {
	mustPeriod(period)
	if len(values) < period {
		return nanSeries(len(values))
	}
	out := talib.Sma(values, period)
	fillNaN(out, period-1)
	return out
}

// EMASeries returns the SMA-seeded exponential moving average aligned with
// values. Entries before index period-1 are NaN.
func EMASeries(values []float64, period int) []float64 {
	mustPeriod(period)
	if len(values) < period {
		return nanSeries(len(values))
	}
	out := talib.Ema(values, period)
	fillNaN(out, period-1)
	return out
}

// AvgVolume is the simple average of the last period volumes.
func AvgVolume(volumes []float64, period int) *float64 {
	return SMA(volumes, period)
}

func mustPeriod(period int) {
	if period <= 0 {
		panic(fmt.Sprintf("calculator: period must be positive, got %d", period))
	}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	fillNaN(out, n)
	return out
}

// fillNaN marks the first n entries as unavailable.
func fillNaN(out []float64, n int) {
	for i := 0; i < n && i < len(out); i++ {
		out[i] = math.NaN()
	}
}

// last returns a pointer to the final value of a series, nil if it is NaN or
// the series is empty.
func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	return At(series, len(series)-1)
}

// At returns a pointer to series[i], nil if that entry is NaN.
func At(series []float64, i int) *float64 {
	v := series[i]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
