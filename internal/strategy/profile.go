package strategy

import (
	"fmt"
	"math"
	"sort"

	"SignalDesk/internal/model"
)

// Weights is the share of each component in the composite score. They must sum to 1.
type Weights struct {
	MA     float64 `yaml:"ma" json:"ma"`
	MACD   float64 `yaml:"macd" json:"macd"`
	RSI    float64 `yaml:"rsi" json:"rsi"`
	Volume float64 `yaml:"volume" json:"volume"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.MA + w.MACD + w.RSI + w.Volume
}

// RSIBand is the RSI range mapped linearly onto [-2,+2]. RSI at or below Low
// scores -2, at or above High scores +2.
type RSIBand struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Profile parametrizes the composite scorer for one audience.
type Profile struct {
	Name           string  `yaml:"name" json:"name"`
	Weights        Weights `yaml:"weights" json:"weights"`
	RSIBand        RSIBand `yaml:"rsi_band" json:"rsi_band"`
	MASpreadCap    float64 `yaml:"ma_spread_cap" json:"ma_spread_cap"`
	MACDTolerance  float64 `yaml:"macd_tolerance" json:"macd_tolerance"`
	BuyThreshold   int     `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold  int     `yaml:"sell_threshold" json:"sell_threshold"`
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year"`
}

// DefaultWeights is the canonical MA/MACD/RSI/volume split.
var DefaultWeights = Weights{MA: 0.40, MACD: 0.30, RSI: 0.20, Volume: 0.10}

// Built-in profile names.
const (
	ProfileCrypto = "crypto"
	ProfileEquity = "equity"
)

// Crypto trades every day and swings harder, so it uses the wide 30/70 band.
var Crypto = Profile{
	Name:           ProfileCrypto,
	Weights:        DefaultWeights,
	RSIBand:        RSIBand{Low: 30, High: 70},
	MASpreadCap:    0.20,
	MACDTolerance:  0.01,
	BuyThreshold:   66,
	SellThreshold:  33,
	PeriodsPerYear: 365,
}

// Equity uses the centered 40/60 band.
var Equity = Profile{
	Name:           ProfileEquity,
	Weights:        DefaultWeights,
	RSIBand:        RSIBand{Low: 40, High: 60},
	MASpreadCap:    0.20,
	MACDTolerance:  0.01,
	BuyThreshold:   66,
	SellThreshold:  33,
	PeriodsPerYear: 252,
}

// DefaultProfiles returns a fresh copy of the built-in profiles keyed by name.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileCrypto: Crypto,
		ProfileEquity: Equity,
	}
}

// ForMarket returns the built-in profile for a market.
func ForMarket(m model.Market) Profile {
	if m == model.MarketCrypto {
		return Crypto
	}
	return Equity
}

// OrDefault returns p, or Equity when p is unnamed. The zero Profile stands
// for "no profile given".
func (p Profile) OrDefault() Profile {
	if p.Name == "" {
		return Equity
	}
	return p
}

const weightTolerance = 1e-6

// Validate checks that the profile is usable by the scorer.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name is required")
	}
	w := p.Weights
	if w.MA < 0 || w.MACD < 0 || w.RSI < 0 || w.Volume < 0 {
		return fmt.Errorf("profile %s: weights must be non-negative", p.Name)
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("profile %s: weights sum to %.4f, want 1", p.Name, sum)
	}
	if p.RSIBand.Low < 0 || p.RSIBand.High > 100 || p.RSIBand.Low >= p.RSIBand.High {
		return fmt.Errorf("profile %s: invalid rsi band [%.1f, %.1f]", p.Name, p.RSIBand.Low, p.RSIBand.High)
	}
	if p.MASpreadCap <= 0 || p.MACDTolerance <= 0 {
		return fmt.Errorf("profile %s: ma_spread_cap and macd_tolerance must be positive", p.Name)
	}
	if p.SellThreshold < 0 || p.BuyThreshold > 100 || p.SellThreshold >= p.BuyThreshold {
		return fmt.Errorf("profile %s: need 0 <= sell_threshold < buy_threshold <= 100, got %d/%d",
			p.Name, p.SellThreshold, p.BuyThreshold)
	}
	if p.PeriodsPerYear <= 0 {
		return fmt.Errorf("profile %s: periods_per_year must be positive", p.Name)
	}
	return nil
}

// MergeProfiles overlays configured profiles on the built-ins. Zero fields in
// an override keep the built-in value of the same name (or Equity for new names).
func MergeProfiles(overrides map[string]Profile) (map[string]Profile, error) {
	out := DefaultProfiles()
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		o := overrides[name]
		base, ok := out[name]
		if !ok {
			base = Equity
		}
		base.Name = name
		if o.Weights != (Weights{}) {
			base.Weights = o.Weights
		}
		if o.RSIBand != (RSIBand{}) {
			base.RSIBand = o.RSIBand
		}
		if o.MASpreadCap != 0 {
			base.MASpreadCap = o.MASpreadCap
		}
		if o.MACDTolerance != 0 {
			base.MACDTolerance = o.MACDTolerance
		}
		if o.BuyThreshold != 0 {
			base.BuyThreshold = o.BuyThreshold
		}
		if o.SellThreshold != 0 {
			base.SellThreshold = o.SellThreshold
		}
		if o.PeriodsPerYear != 0 {
			base.PeriodsPerYear = o.PeriodsPerYear
		}
		if err := base.Validate(); err != nil {
			return nil, err
		}
		out[name] = base
	}
	return out, nil
}
