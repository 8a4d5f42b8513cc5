package models

import (
	"math"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// A snapshot of the Black-Scholes market the option is priced in.
// Passed by value: every bumped scenario is its own copy.
type MarketModel struct {
	Spot       float64
	Rate       float64
	Volatility float64
	Dividend   float64
}

// Creates a new MarketModel and validates it
func NewMarketModel(spot, rate, volatility, dividend float64) (MarketModel, error) {
	m := MarketModel{
		Spot:       spot,
		Rate:       rate,
		Volatility: volatility,
		Dividend:   dividend,
	}
	if err := m.Validate(); err != nil {
		return MarketModel{}, err
	}
	return m, nil
}

// Validate rejects models the GBM dynamics are undefined for
func (m MarketModel) Validate() error {
	if !(m.Spot > 0) || math.IsInf(m.Spot, 0) {
		return errors.InvalidConfigurationf("spot must be positive and finite, got %v", m.Spot)
	}
	if !(m.Volatility > 0) || math.IsInf(m.Volatility, 0) {
		return errors.InvalidConfigurationf("volatility must be positive and finite, got %v", m.Volatility)
	}
	if math.IsNaN(m.Rate) || math.IsInf(m.Rate, 0) {
		return errors.InvalidConfigurationf("rate must be finite, got %v", m.Rate)
	}
	if math.IsNaN(m.Dividend) || math.IsInf(m.Dividend, 0) {
		return errors.InvalidConfigurationf("dividend yield must be finite, got %v", m.Dividend)
	}
	return nil
}

// WithSpot returns a copy of the model with the spot replaced
func (m MarketModel) WithSpot(spot float64) MarketModel {
	m.Spot = spot
	return m
}

// Bump returns the spot+eps and spot-eps copies used for central differences
func (m MarketModel) Bump(eps float64) (up MarketModel, down MarketModel) {
	return m.WithSpot(m.Spot + eps), m.WithSpot(m.Spot - eps)
}

// DiscountFactor returns exp(-rate*t)
func (m MarketModel) DiscountFactor(t float64) float64 {
	return math.Exp(-m.Rate * t)
}

// RiskNeutralDrift returns the log drift per unit time, r - q - sigma^2/2
func (m MarketModel) RiskNeutralDrift() float64 {
	return m.Rate - m.Dividend - 0.5*m.Volatility*m.Volatility
}
