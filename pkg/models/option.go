package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// Defines the type of option
type OptionType int

const (
	OptionTypeCall OptionType = iota
	OptionTypePut
)

func (t OptionType) String() string {
	if t == OptionTypePut {
		return "put"
	}
	return "call"
}

// Defines the option variant. The set is closed: payoff dispatch switches on it.
type Variant int

const (
	VariantVanilla Variant = iota
	VariantBarrier
	VariantAsian
	VariantLookback
)

func (v Variant) String() string {
	switch v {
	case VariantVanilla:
		return "vanilla"
	case VariantBarrier:
		return "barrier"
	case VariantAsian:
		return "asian"
	case VariantLookback:
		return "lookback"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Defines the barrier direction and knock rule
type BarrierKind int

const (
	BarrierUpAndOut BarrierKind = iota
	BarrierDownAndOut
	BarrierUpAndIn
	BarrierDownAndIn
)

func (k BarrierKind) String() string {
	switch k {
	case BarrierUpAndOut:
		return "up-and-out"
	case BarrierDownAndOut:
		return "down-and-out"
	case BarrierUpAndIn:
		return "up-and-in"
	case BarrierDownAndIn:
		return "down-and-in"
	default:
		return fmt.Sprintf("barrier(%d)", int(k))
	}
}

// IsUp reports whether the barrier is crossed from below
func (k BarrierKind) IsUp() bool {
	return k == BarrierUpAndOut || k == BarrierUpAndIn
}

// IsKnockOut reports whether touching the barrier cancels the option
func (k BarrierKind) IsKnockOut() bool {
	return k == BarrierUpAndOut || k == BarrierDownAndOut
}

// Barrier level and kind for barrier options
type BarrierSpec struct {
	Level float64
	Kind  BarrierKind
}

// An option contract. Values are immutable once built by one of the
// New* constructors; Barrier is only meaningful for VariantBarrier.
type OptionSpec struct {
	Strike   float64
	Maturity float64
	Variant  Variant
	Type     OptionType
	Barrier  BarrierSpec
}

// Creates a new vanilla European option
func NewVanilla(strike, maturity float64, optionType OptionType) (OptionSpec, error) {
	return newOption(strike, maturity, VariantVanilla, optionType, BarrierSpec{})
}

// Creates a new single-barrier option
func NewBarrier(strike, maturity, level float64, kind BarrierKind, optionType OptionType) (OptionSpec, error) {
	return newOption(strike, maturity, VariantBarrier, optionType, BarrierSpec{Level: level, Kind: kind})
}

// Creates a new arithmetic-average Asian option
func NewAsian(strike, maturity float64, optionType OptionType) (OptionSpec, error) {
	return newOption(strike, maturity, VariantAsian, optionType, BarrierSpec{})
}

// Creates a new fixed-strike lookback option
func NewLookback(strike, maturity float64, optionType OptionType) (OptionSpec, error) {
	return newOption(strike, maturity, VariantLookback, optionType, BarrierSpec{})
}

func newOption(strike, maturity float64, variant Variant, optionType OptionType, barrier BarrierSpec) (OptionSpec, error) {
	o := OptionSpec{
		Strike:   strike,
		Maturity: maturity,
		Variant:  variant,
		Type:     optionType,
		Barrier:  barrier,
	}
	if err := o.Validate(); err != nil {
		return OptionSpec{}, err
	}
	return o, nil
}

// Validate checks the contract terms
func (o OptionSpec) Validate() error {
	if !(o.Strike > 0) || math.IsInf(o.Strike, 0) {
		return errors.InvalidConfigurationf("strike must be positive and finite, got %v", o.Strike)
	}
	if !(o.Maturity > 0) || math.IsInf(o.Maturity, 0) {
		return errors.InvalidConfigurationf("maturity must be positive and finite, got %v", o.Maturity)
	}
	if o.Type != OptionTypeCall && o.Type != OptionTypePut {
		return errors.InvalidConfigurationf("unknown option type %d", int(o.Type))
	}

	switch o.Variant {
	case VariantVanilla, VariantAsian, VariantLookback:
		if o.Barrier != (BarrierSpec{}) {
			return errors.InvalidConfigurationf("%s option cannot carry a barrier", o.Variant)
		}
	case VariantBarrier:
		if !(o.Barrier.Level > 0) || math.IsInf(o.Barrier.Level, 0) {
			return errors.InvalidConfigurationf("barrier level must be positive and finite, got %v", o.Barrier.Level)
		}
		if o.Barrier.Kind < BarrierUpAndOut || o.Barrier.Kind > BarrierDownAndIn {
			return errors.InvalidConfigurationf("unknown barrier kind %d", int(o.Barrier.Kind))
		}
	default:
		return errors.InvalidConfigurationf("unknown option variant %d", int(o.Variant))
	}
	return nil
}

// IsCall reports whether the option is a call
func (o OptionSpec) IsCall() bool {
	return o.Type == OptionTypeCall
}

// Intrinsic returns the vanilla exercise value at the given price
func (o OptionSpec) Intrinsic(price float64) float64 {
	if o.IsCall() {
		return math.Max(price-o.Strike, 0)
	}
	return math.Max(o.Strike-price, 0)
}

// VanillaEquivalent returns the vanilla option with the same strike, maturity and type
func (o OptionSpec) VanillaEquivalent() OptionSpec {
	return OptionSpec{
		Strike:   o.Strike,
		Maturity: o.Maturity,
		Variant:  VariantVanilla,
		Type:     o.Type,
	}
}

// String returns a short human readable description
func (o OptionSpec) String() string {
	if o.Variant == VariantBarrier {
		return fmt.Sprintf("%s %s %s K=%.4g B=%.4g T=%.4g", o.Barrier.Kind, o.Variant, o.Type, o.Strike, o.Barrier.Level, o.Maturity)
	}
	return fmt.Sprintf("%s %s K=%.4g T=%.4g", o.Variant, o.Type, o.Strike, o.Maturity)
}

// ParseOptionType parses "call" or "put"
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionTypeCall, nil
	case "put":
		return OptionTypePut, nil
	default:
		return 0, errors.InvalidConfigurationf("unknown option type %q", s)
	}
}

// ParseVariant parses a variant name as printed by Variant.String
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for v := VariantVanilla; v <= VariantLookback; v++ {
		if v.String() == name {
			return v, nil
		}
	}
	return 0, errors.InvalidConfigurationf("unknown option variant %q", s)
}

// ParseBarrierKind parses a barrier kind such as "up-and-out" or "down-and-in"
func ParseBarrierKind(s string) (BarrierKind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for k := BarrierUpAndOut; k <= BarrierDownAndIn; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, errors.InvalidConfigurationf("unknown barrier kind %q", s)
}
