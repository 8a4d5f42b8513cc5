package pricing

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// PathGenerator discretises risk-neutral GBM over a fixed horizon:
//
//	S_{j+1} = S_j * exp((r - q - sigma^2/2)*dt + sigma*sqrt(dt)*Z_j)
//
// Generated paths hold steps+1 prices with the starting spot at index 0.
type PathGenerator struct {
	spot      float64
	steps     int
	dt        float64
	drift     float64
	diffusion float64
}

// NewPathGenerator validates the inputs and precomputes the per-step terms
func NewPathGenerator(model models.MarketModel, steps int, horizon float64) (*PathGenerator, error) {
	if steps <= 0 {
		return nil, errors.InvalidConfigurationf("steps must be positive, got %d", steps)
	}
	if !(horizon > 0) || math.IsInf(horizon, 0) {
		return nil, errors.InvalidConfigurationf("horizon must be positive and finite, got %v", horizon)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	dt := horizon / float64(steps)
	return &PathGenerator{
		spot:      model.Spot,
		steps:     steps,
		dt:        dt,
		drift:     model.RiskNeutralDrift() * dt,
		diffusion: model.Volatility * math.Sqrt(dt),
	}, nil
}

// Steps returns the number of time steps per path
func (g *PathGenerator) Steps() int {
	return g.steps
}

// Dt returns the time step in years
func (g *PathGenerator) Dt() float64 {
	return g.dt
}

// Step advances a price by one time step for the given shock
func (g *PathGenerator) Step(spot, shock float64) float64 {
	return spot * math.Exp(g.drift+g.diffusion*shock)
}

// Simulate fills buf (reallocating if it is too small) with one path and
// returns it. The result aliases buf.
func (g *PathGenerator) Simulate(rng *rand.Rand, buf []float64) []float64 {
	n := g.steps + 1
	if cap(buf) < n {
		buf = make([]float64, n)
	}
	path := buf[:n]

	path[0] = g.spot
	for j := 1; j < n; j++ {
		path[j] = g.Step(path[j-1], rng.NormFloat64())
	}
	return path
}

// SimulateTerminal draws the same sequence of shocks as Simulate but keeps
// only the final price.
func (g *PathGenerator) SimulateTerminal(rng *rand.Rand) float64 {
	spot := g.spot
	for j := 0; j < g.steps; j++ {
		spot = g.Step(spot, rng.NormFloat64())
	}
	return spot
}
