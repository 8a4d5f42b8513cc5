package hedging

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/option-hedging-sim/internal/pricing"
	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

type constDelta float64

func (c constDelta) Delta(context.Context, models.OptionSpec, models.MarketModel, int, float64) (float64, error) {
	return float64(c), nil
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordHedge(variant string, rebalances int, cost float64) {
	m.Called(variant, rebalances, cost)
}

func (m *mockRecorder) RecordError(errType string) {
	m.Called(errType)
}

func newTestSimulator(t *testing.T, seed uint64, opts ...Option) *Simulator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumPaths = 500
	engine := pricing.NewMonteCarloEngine(pricing.EngineConfig{Seed: seed})
	opts = append([]Option{WithSeedSource(pricing.NewSeedSource(seed))}, opts...)
	s, err := NewSimulator(cfg, engine, opts...)
	require.NoError(t, err)
	return s
}

func TestNewSimulatorValidatesConfig(t *testing.T) {
	engine := pricing.NewMonteCarloEngine(pricing.DefaultEngineConfig())

	_, err := NewSimulator(Config{NumPaths: 0, BumpRatio: 0.01}, engine)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	_, err = NewSimulator(Config{NumPaths: 10, BumpRatio: 1.5}, engine)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	_, err = NewSimulator(Config{NumPaths: 10, BumpRatio: 0.01, ConfidenceLevel: 1}, engine)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	_, err = NewSimulator(DefaultConfig(), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
}

func TestHedgeRejectsNonPositiveSteps(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordError", "invalid_configuration").Twice()

	s := newTestSimulator(t, 1, WithRecorder(rec))
	opt, err := models.NewVanilla(100, 1, models.OptionTypeCall)
	require.NoError(t, err)

	_, err = s.HedgeCost(context.Background(), opt, testModel(t), 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	_, err = s.HedgeCost(context.Background(), opt, testModel(t), -2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	rec.AssertExpectations(t)
}

func TestSingleStepHedgeCostsIntrinsic(t *testing.T) {
	s := newTestSimulator(t, 1)
	m := testModel(t).WithSpot(110)

	call, err := models.NewVanilla(100, 1, models.OptionTypeCall)
	require.NoError(t, err)
	res, err := s.Run(context.Background(), call, m, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.Cost, 1e-9)
	assert.Equal(t, []float64{110}, res.Trajectory)
	assert.Len(t, res.Deltas, 1)
	assert.Equal(t, 0, res.Rebalances)

	asian, err := models.NewAsian(100, 1, models.OptionTypePut)
	require.NoError(t, err)
	cost, err := s.HedgeCost(context.Background(), asian, m.WithSpot(90), 1)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, cost, 1e-9)
}

func TestHedgeIsReproducibleForASeed(t *testing.T) {
	opt, err := models.NewLookback(100, 1, models.OptionTypeCall)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := newTestSimulator(t, 8).Run(ctx, opt, testModel(t), 6)
	require.NoError(t, err)
	b, err := newTestSimulator(t, 8).Run(ctx, opt, testModel(t), 6)
	require.NoError(t, err)

	assert.Equal(t, a.Cost, b.Cost)
	assert.Equal(t, a.Trajectory, b.Trajectory)
	assert.Equal(t, a.Deltas, b.Deltas)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestTrajectoryUsesUniformShocks(t *testing.T) {
	s := newTestSimulator(t, 4)
	m := testModel(t)
	opt, err := models.NewVanilla(100, 1, models.OptionTypePut)
	require.NoError(t, err)

	const steps = 200
	res, err := s.Run(context.Background(), opt, m, steps)
	require.NoError(t, err)
	require.Len(t, res.Trajectory, steps)
	require.Len(t, res.Deltas, steps)
	assert.Equal(t, 100.0, res.Trajectory[0])
	assert.Equal(t, steps-1, res.Rebalances)

	dt := opt.Maturity / steps
	drift := m.RiskNeutralDrift() * dt
	halfWidth := 0.5 * m.Volatility * math.Sqrt(dt)
	for i := 1; i < len(res.Trajectory); i++ {
		shock := math.Log(res.Trajectory[i]/res.Trajectory[i-1]) - drift
		assert.LessOrEqual(t, math.Abs(shock), halfWidth+1e-12)
	}
	for _, d := range res.Deltas {
		assert.True(t, d <= 0 && d >= -1, "put delta %v out of range", d)
	}
}

func TestConstantDeltaCashAccount(t *testing.T) {
	p := &linearPricer{}
	p.On("PriceAt", mock.Anything, mock.Anything, mock.Anything, 500, mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultConfig()
	cfg.NumPaths = 500
	s, err := NewSimulator(cfg, p, WithSeedSource(pricing.NewSeedSource(12)))
	require.NoError(t, err)

	opt, err := models.NewAsian(100, 1, models.OptionTypeCall)
	require.NoError(t, err)
	m := testModel(t)

	const steps = 4
	res, err := s.Run(context.Background(), opt, m, steps)
	require.NoError(t, err)

	// Two repricings per date, each with the remaining steps and maturity.
	p.AssertNumberOfCalls(t, "PriceAt", 2*steps)
	for i := 0; i < steps; i++ {
		up := p.Calls[2*i].Arguments
		down := p.Calls[2*i+1].Arguments
		spot := res.Trajectory[i]

		assert.InDelta(t, spot*1.01, up.Get(2).(models.MarketModel).Spot, 1e-9)
		assert.InDelta(t, spot*0.99, down.Get(2).(models.MarketModel).Spot, 1e-9)
		assert.Equal(t, steps-i, up.Get(4))
		assert.InDelta(t, opt.Maturity*float64(steps-i)/steps, up.Get(5).(float64), 1e-15)
	}

	for _, d := range res.Deltas {
		assert.InDelta(t, 0.5, d, 1e-9)
	}

	payoff := math.Max(stat.Mean(res.Trajectory, nil)-100, 0)
	growth := math.Exp(m.Rate * opt.Maturity / steps)
	expected := 0.5*100*math.Pow(growth, steps-1) - 0.5*res.Trajectory[steps-1] + payoff
	assert.InDelta(t, expected, res.Cost, 1e-9)
}

func TestBarrierDeltaOverrides(t *testing.T) {
	m := testModel(t)
	analytic := pricing.NewAnalyticEngine()
	const steps = 50

	for _, kind := range []models.BarrierKind{models.BarrierUpAndOut, models.BarrierUpAndIn} {
		t.Run(kind.String(), func(t *testing.T) {
			opt, err := models.NewBarrier(100, 1, 100.5, kind, models.OptionTypeCall)
			require.NoError(t, err)

			var res *HedgeResult
			for seed := uint64(1); seed <= 200 && res == nil; seed++ {
				s := newTestSimulator(t, seed, WithDeltaEstimator(constDelta(0.3)))
				r, err := s.Run(context.Background(), opt, m, steps)
				require.NoError(t, err)
				if r.KnockedOut || r.KnockedIn {
					res = r
				}
			}
			require.NotNil(t, res, "no seed touched the barrier")
			assert.Equal(t, kind.IsKnockOut(), res.KnockedOut)
			assert.Equal(t, !kind.IsKnockOut(), res.KnockedIn)

			touch := -1
			for i := 1; i < len(res.Trajectory); i++ {
				if pricing.BarrierCrossed(opt.Barrier, res.Trajectory[i-1], res.Trajectory[i]) {
					touch = i
					break
				}
			}
			require.Positive(t, touch)

			for i, d := range res.Deltas {
				switch {
				case i < touch:
					assert.Equal(t, 0.3, d)
				case kind.IsKnockOut():
					assert.Equal(t, 0.0, d)
				default:
					remaining := opt.Maturity * float64(steps-i) / steps
					want, err := analytic.Delta(opt.VanillaEquivalent(), m.WithSpot(res.Trajectory[i]), remaining)
					require.NoError(t, err)
					assert.InDelta(t, want, d, 1e-12)
				}
			}
		})
	}
}

func TestNonFiniteDeltaIsDegenerate(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordError", "numeric_degeneracy").Once()

	s := newTestSimulator(t, 2, WithDeltaEstimator(constDelta(math.NaN())), WithRecorder(rec))
	opt, err := models.NewVanilla(100, 1, models.OptionTypeCall)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), opt, testModel(t), 10)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNumericDegeneracy))
	rec.AssertExpectations(t)
}

func TestPathDependentHedgeWithNestedMonteCarlo(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordHedge", "asian", 4, mock.AnythingOfType("float64")).Once()

	s := newTestSimulator(t, 6, WithRecorder(rec))
	opt, err := models.NewAsian(100, 0.5, models.OptionTypeCall)
	require.NoError(t, err)

	res, err := s.Run(context.Background(), opt, testModel(t), 5)
	require.NoError(t, err)

	assert.Len(t, res.Trajectory, 5)
	assert.False(t, math.IsNaN(res.Cost))
	for _, d := range res.Deltas {
		assert.True(t, d > -0.5 && d < 1.5, "asian call delta %v", d)
	}
	rec.AssertExpectations(t)
}

func TestDistributionIsIndependentOfWorkers(t *testing.T) {
	opt, err := models.NewVanilla(100, 1, models.OptionTypeCall)
	require.NoError(t, err)
	m := testModel(t)

	summarize := func(workers int) *CostSummary {
		cfg := DefaultConfig()
		cfg.Workers = workers
		s, err := NewSimulator(cfg, pricing.NewAnalyticEngine(), WithSeedSource(pricing.NewSeedSource(31)))
		require.NoError(t, err)
		sum, err := s.Distribution(context.Background(), opt, m, 25, 40)
		require.NoError(t, err)
		return sum
	}

	serial := summarize(1)
	parallel := summarize(6)

	assert.Equal(t, serial, parallel)
	assert.Equal(t, 40, serial.Runs)
	assert.LessOrEqual(t, serial.Min, serial.Mean)
	assert.GreaterOrEqual(t, serial.Max, serial.Mean)
	assert.Greater(t, serial.StdDev, 0.0)
	assert.GreaterOrEqual(t, serial.ValueAtRisk, serial.Mean)
	assert.GreaterOrEqual(t, serial.ExpectedShortfall, serial.ValueAtRisk)
	assert.LessOrEqual(t, serial.ExpectedShortfall, serial.Max)

	_, err = newTestSimulator(t, 1).Distribution(context.Background(), opt, m, 25, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
}
