package pricing

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// Evaluator computes the undiscounted payoff of one option variant.
//
// A variant supports either the terminal entry point, the path entry point,
// or both. Calling an unsupported one returns an UnsupportedOperation error
// rather than a zero payoff.
type Evaluator interface {
	// Terminal returns the payoff from a single final price
	Terminal(spot float64) (float64, error)
	// Path returns the payoff from a full path, seed price included
	Path(path []float64) (float64, error)
	// PathDependent reports whether pricing needs the whole path
	PathDependent() bool
}

// NewEvaluator returns the evaluator for the option's variant
func NewEvaluator(opt models.OptionSpec) (Evaluator, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	switch opt.Variant {
	case models.VariantVanilla:
		return vanillaPayoff{opt: opt}, nil
	case models.VariantBarrier:
		return barrierPayoff{opt: opt}, nil
	case models.VariantAsian:
		return asianPayoff{opt: opt}, nil
	case models.VariantLookback:
		return lookbackPayoff{opt: opt}, nil
	default:
		return nil, errors.InvalidConfigurationf("unknown option variant %d", int(opt.Variant))
	}
}

type vanillaPayoff struct {
	opt models.OptionSpec
}

func (p vanillaPayoff) Terminal(spot float64) (float64, error) {
	return p.opt.Intrinsic(spot), nil
}

func (p vanillaPayoff) Path(path []float64) (float64, error) {
	return 0, errors.UnsupportedOperationf("path payoff is not applicable to a vanilla option")
}

func (p vanillaPayoff) PathDependent() bool { return false }

type barrierPayoff struct {
	opt models.OptionSpec
}

// Terminal is the ungated vanilla payoff; the knock state needs a path.
func (p barrierPayoff) Terminal(spot float64) (float64, error) {
	return p.opt.Intrinsic(spot), nil
}

func (p barrierPayoff) Path(path []float64) (float64, error) {
	if len(path) == 0 {
		return 0, errors.InvalidConfigurationf("barrier payoff needs a non-empty path")
	}
	touched := BarrierTouched(p.opt.Barrier, path)
	if touched == p.opt.Barrier.Kind.IsKnockOut() {
		return 0, nil
	}
	return p.opt.Intrinsic(path[len(path)-1]), nil
}

func (p barrierPayoff) PathDependent() bool { return true }

type asianPayoff struct {
	opt models.OptionSpec
}

func (p asianPayoff) Terminal(spot float64) (float64, error) {
	return 0, errors.UnsupportedOperationf("terminal payoff is not applicable to an asian option")
}

func (p asianPayoff) Path(path []float64) (float64, error) {
	if len(path) == 0 {
		return 0, errors.InvalidConfigurationf("asian payoff needs a non-empty path")
	}
	return p.opt.Intrinsic(stat.Mean(path, nil)), nil
}

func (p asianPayoff) PathDependent() bool { return true }

type lookbackPayoff struct {
	opt models.OptionSpec
}

func (p lookbackPayoff) Terminal(spot float64) (float64, error) {
	return 0, errors.UnsupportedOperationf("terminal payoff is not applicable to a lookback option")
}

func (p lookbackPayoff) Path(path []float64) (float64, error) {
	if len(path) == 0 {
		return 0, errors.InvalidConfigurationf("lookback payoff needs a non-empty path")
	}
	if p.opt.IsCall() {
		return p.opt.Intrinsic(floats.Max(path)), nil
	}
	return p.opt.Intrinsic(floats.Min(path)), nil
}

func (p lookbackPayoff) PathDependent() bool { return true }

// BarrierCrossed reports a directional crossing between two consecutive
// prices: prev < B <= cur for up barriers, prev > B >= cur for down barriers.
func BarrierCrossed(b models.BarrierSpec, prev, cur float64) bool {
	if b.Kind.IsUp() {
		return prev < b.Level && cur >= b.Level
	}
	return prev > b.Level && cur <= b.Level
}

// BarrierTouched scans a path for the first directional crossing
func BarrierTouched(b models.BarrierSpec, path []float64) bool {
	for i := 1; i < len(path); i++ {
		if BarrierCrossed(b, path[i-1], path[i]) {
			return true
		}
	}
	return false
}

// IsBarrierTouched is the barrier query exposed to callers; it fails for
// options without a barrier.
func IsBarrierTouched(opt models.OptionSpec, path []float64) (bool, error) {
	if opt.Variant != models.VariantBarrier {
		return false, errors.UnsupportedOperationf("barrier query is not applicable to a %s option", opt.Variant)
	}
	if err := opt.Validate(); err != nil {
		return false, err
	}
	return BarrierTouched(opt.Barrier, path), nil
}
