package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

func TestNewOptionValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func() (OptionSpec, error)
	}{
		{"zero strike", func() (OptionSpec, error) { return NewVanilla(0, 1, OptionTypeCall) }},
		{"negative maturity", func() (OptionSpec, error) { return NewAsian(100, -1, OptionTypePut) }},
		{"zero maturity", func() (OptionSpec, error) { return NewLookback(100, 0, OptionTypeCall) }},
		{"zero barrier", func() (OptionSpec, error) { return NewBarrier(100, 1, 0, BarrierUpAndOut, OptionTypeCall) }},
		{"unknown kind", func() (OptionSpec, error) { return NewBarrier(100, 1, 120, BarrierKind(9), OptionTypeCall) }},
		{"unknown type", func() (OptionSpec, error) { return NewVanilla(100, 1, OptionType(7)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
		})
	}
}

func TestValidateRejectsStrayBarrier(t *testing.T) {
	o := OptionSpec{Strike: 100, Maturity: 1, Variant: VariantAsian, Barrier: BarrierSpec{Level: 120}}
	assert.Error(t, o.Validate())
}

func TestIntrinsic(t *testing.T) {
	call, err := NewVanilla(100, 1, OptionTypeCall)
	require.NoError(t, err)
	put, err := NewVanilla(100, 1, OptionTypePut)
	require.NoError(t, err)

	assert.Equal(t, 10.0, call.Intrinsic(110))
	assert.Equal(t, 0.0, call.Intrinsic(90))
	assert.Equal(t, 10.0, put.Intrinsic(90))
	assert.Equal(t, 0.0, put.Intrinsic(110))
}

func TestVanillaEquivalent(t *testing.T) {
	b, err := NewBarrier(95, 0.5, 120, BarrierUpAndIn, OptionTypePut)
	require.NoError(t, err)

	v := b.VanillaEquivalent()
	assert.Equal(t, VariantVanilla, v.Variant)
	assert.Equal(t, 95.0, v.Strike)
	assert.Equal(t, 0.5, v.Maturity)
	assert.Equal(t, OptionTypePut, v.Type)
	assert.NoError(t, v.Validate())
}

func TestBarrierKindPredicates(t *testing.T) {
	assert.True(t, BarrierUpAndOut.IsUp())
	assert.True(t, BarrierUpAndOut.IsKnockOut())
	assert.False(t, BarrierDownAndIn.IsUp())
	assert.False(t, BarrierDownAndIn.IsKnockOut())
	assert.Equal(t, "down-and-out", BarrierDownAndOut.String())
}

func TestMarketModelBumpIsIndependent(t *testing.T) {
	m, err := NewMarketModel(100, 0.05, 0.2, 0)
	require.NoError(t, err)

	up, down := m.Bump(1)
	up.Rate = 0.5

	assert.Equal(t, 101.0, up.Spot)
	assert.Equal(t, 99.0, down.Spot)
	assert.Equal(t, 100.0, m.Spot)
	assert.Equal(t, 0.05, m.Rate)
	assert.Equal(t, 0.05, down.Rate)
}

func TestMarketModelValidate(t *testing.T) {
	_, err := NewMarketModel(100, 0.05, 0, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	_, err = NewMarketModel(-1, 0.05, 0.2, 0)
	assert.Error(t, err)

	m, err := NewMarketModel(100, 0.05, 0.2, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 0.05-0.01-0.02, m.RiskNeutralDrift(), 1e-12)
	assert.InDelta(t, 0.951229, m.DiscountFactor(1), 1e-6)
}

func TestParseNames(t *testing.T) {
	typ, err := ParseOptionType(" PUT ")
	require.NoError(t, err)
	assert.Equal(t, OptionTypePut, typ)

	v, err := ParseVariant("Lookback")
	require.NoError(t, err)
	assert.Equal(t, VariantLookback, v)

	k, err := ParseBarrierKind("down_and_in")
	require.NoError(t, err)
	assert.Equal(t, BarrierDownAndIn, k)

	_, err = ParseOptionType("straddle")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
	_, err = ParseVariant("bermudan")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
	_, err = ParseBarrierKind("sideways")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
}
