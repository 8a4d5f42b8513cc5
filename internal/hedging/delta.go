package hedging

import (
	"context"
	"math"

	"github.com/rzzdr/option-hedging-sim/internal/pricing"
	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// Pricer is the pricing capability the hedger re-invokes at every
// rebalancing date. Both the Monte Carlo and the analytic engine satisfy it.
type Pricer interface {
	PriceAt(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64) (float64, error)
}

// SeededPricer is implemented by pricers that accept an explicit seed.
// Finite differences use it to reprice both bumps on the same draws.
type SeededPricer interface {
	PriceAtSeed(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64, seed uint64) (float64, error)
}

// DeltaEstimator returns the hedge ratio at the model's spot for the given
// remaining horizon.
type DeltaEstimator interface {
	Delta(ctx context.Context, opt models.OptionSpec, model models.MarketModel, remainingSteps int, remainingMaturity float64) (float64, error)
}

// FiniteDifferenceDelta estimates delta by central differences,
//
//	[P(S+eps) - P(S-eps)] / (2*eps), eps = BumpRatio * S
//
// repricing with the remaining steps and maturity.
type FiniteDifferenceDelta struct {
	Pricer    Pricer
	NumPaths  int
	BumpRatio float64
	// Seeds, when set and Pricer is a SeededPricer, gives both bumps a
	// common seed.
	Seeds *pricing.SeedSource
}

// Delta implements DeltaEstimator
func (d FiniteDifferenceDelta) Delta(ctx context.Context, opt models.OptionSpec, model models.MarketModel, remainingSteps int, remainingMaturity float64) (float64, error) {
	if !(remainingMaturity > 0) {
		return 0, errors.NumericDegeneracyf("cannot reprice with remaining maturity %v", remainingMaturity)
	}
	if !(d.BumpRatio > 0 && d.BumpRatio < 1) {
		return 0, errors.InvalidConfigurationf("bump ratio must be in (0, 1), got %v", d.BumpRatio)
	}

	eps := d.BumpRatio * model.Spot
	up, down := model.Bump(eps)

	var priceUp, priceDown float64
	var err error
	if sp, ok := d.Pricer.(SeededPricer); ok && d.Seeds != nil {
		seed := d.Seeds.Next()
		if priceUp, err = sp.PriceAtSeed(ctx, opt, up, d.NumPaths, remainingSteps, remainingMaturity, seed); err != nil {
			return 0, err
		}
		if priceDown, err = sp.PriceAtSeed(ctx, opt, down, d.NumPaths, remainingSteps, remainingMaturity, seed); err != nil {
			return 0, err
		}
	} else {
		if priceUp, err = d.Pricer.PriceAt(ctx, opt, up, d.NumPaths, remainingSteps, remainingMaturity); err != nil {
			return 0, err
		}
		if priceDown, err = d.Pricer.PriceAt(ctx, opt, down, d.NumPaths, remainingSteps, remainingMaturity); err != nil {
			return 0, err
		}
	}

	delta := (priceUp - priceDown) / (2 * eps)
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, errors.NumericDegeneracyf("finite difference delta is not finite at spot %v", model.Spot)
	}
	return delta, nil
}

// AnalyticDelta is the closed-form Black-Scholes delta. It only serves
// vanilla options.
type AnalyticDelta struct {
	Engine *pricing.AnalyticEngine
}

// Delta implements DeltaEstimator
func (d AnalyticDelta) Delta(_ context.Context, opt models.OptionSpec, model models.MarketModel, _ int, remainingMaturity float64) (float64, error) {
	return d.Engine.Delta(opt, model, remainingMaturity)
}
