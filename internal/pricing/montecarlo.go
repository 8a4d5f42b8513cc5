package pricing

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/logger"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/pools"
)

const engineName = "montecarlo"

// Recorder receives pricing metrics
type Recorder interface {
	RecordPricing(variant, engine string, paths int, duration time.Duration)
	RecordError(errType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPricing(string, string, int, time.Duration) {}
func (nopRecorder) RecordError(string)                               {}

// EngineConfig contains configuration for the Monte Carlo engine
type EngineConfig struct {
	// Workers bounds the number of chunks simulated concurrently
	Workers int
	// ChunkSize is the number of paths per unit of work. Results depend on it
	// (through the reduction order) but not on Workers.
	ChunkSize int
	// Seed makes runs reproducible; zero draws one from the OS
	Seed uint64
}

// DefaultEngineConfig returns one worker per CPU and 1024-path chunks
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:   runtime.NumCPU(),
		ChunkSize: 1024,
	}
}

// Estimate is a discounted Monte Carlo price with its standard error
type Estimate struct {
	Price    float64
	StdErr   float64
	NumPaths int
	Steps    int
	Horizon  float64
}

// MonteCarloEngine prices any option variant by averaging discounted payoffs
// over independently simulated GBM paths.
type MonteCarloEngine struct {
	config   EngineConfig
	seeds    *SeedSource
	buffers  *pools.Float64SlicePool
	recorder Recorder
	log      *logger.Logger
}

// EngineOption configures a MonteCarloEngine
type EngineOption func(*MonteCarloEngine)

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) EngineOption {
	return func(e *MonteCarloEngine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithSeedSource shares a seed source with other components
func WithSeedSource(s *SeedSource) EngineOption {
	return func(e *MonteCarloEngine) {
		if s != nil {
			e.seeds = s
		}
	}
}

// WithLogger replaces the engine logger
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *MonteCarloEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewMonteCarloEngine creates a new Monte Carlo engine
func NewMonteCarloEngine(config EngineConfig, opts ...EngineOption) *MonteCarloEngine {
	defaults := DefaultEngineConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}

	e := &MonteCarloEngine{
		config:   config,
		buffers:  pools.NewFloat64SlicePool(),
		recorder: nopRecorder{},
		log:      logger.GetLogger("pricing.montecarlo"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seeds == nil {
		e.seeds = NewSeedSource(config.Seed)
	}
	return e
}

// Price prices the option over its full maturity
func (e *MonteCarloEngine) Price(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int) (float64, error) {
	return e.PriceAt(ctx, opt, model, numPaths, steps, opt.Maturity)
}

// PriceAt prices the option with an explicit time to maturity. Hedging uses
// it to re-price over the remaining horizon.
func (e *MonteCarloEngine) PriceAt(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64) (float64, error) {
	est, err := e.EstimateAt(ctx, opt, model, numPaths, steps, horizon)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// Estimate is Price with the standard error of the estimator
func (e *MonteCarloEngine) Estimate(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int) (*Estimate, error) {
	return e.EstimateAt(ctx, opt, model, numPaths, steps, opt.Maturity)
}

type partialSum struct {
	sum   float64
	sumSq float64
}

// EstimateAt runs the simulation. Every input is validated before any path
// is drawn.
func (e *MonteCarloEngine) EstimateAt(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64) (*Estimate, error) {
	return e.estimateSeeded(ctx, opt, model, numPaths, steps, horizon, e.seeds.Next())
}

// PriceAtSeed prices with an explicit call seed instead of the next one from
// the engine's source. Two calls with the same seed, path count and steps
// share every normal draw, which keeps bumped repricings on common random
// numbers.
func (e *MonteCarloEngine) PriceAtSeed(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64, seed uint64) (float64, error) {
	est, err := e.estimateSeeded(ctx, opt, model, numPaths, steps, horizon, seed)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

func (e *MonteCarloEngine) estimateSeeded(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64, callSeed uint64) (*Estimate, error) {
	est, err := e.estimate(ctx, opt, model, numPaths, steps, horizon, callSeed)
	if err != nil {
		e.recorder.RecordError(errors.TypeOf(err).String())
		return nil, err
	}
	return est, nil
}

func (e *MonteCarloEngine) estimate(ctx context.Context, opt models.OptionSpec, model models.MarketModel, numPaths, steps int, horizon float64, callSeed uint64) (*Estimate, error) {
	if numPaths <= 0 {
		return nil, errors.InvalidConfigurationf("number of paths must be positive, got %d", numPaths)
	}
	eval, err := NewEvaluator(opt)
	if err != nil {
		return nil, err
	}
	gen, err := NewPathGenerator(model, steps, horizon)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	chunkSize := e.config.ChunkSize
	numChunks := (numPaths + chunkSize - 1) / chunkSize
	partials := make([]partialSum, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for c := 0; c < numChunks; c++ {
		c := c
		first := c * chunkSize
		last := min(first+chunkSize, numPaths)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := e.simulateChunk(gen, eval, callSeed, first, last)
			if err != nil {
				return err
			}
			partials[c] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fixed chunk order keeps seeded results identical for any worker count.
	var total partialSum
	for _, p := range partials {
		total.sum += p.sum
		total.sumSq += p.sumSq
	}

	n := float64(numPaths)
	mean := total.sum / n
	discount := model.DiscountFactor(horizon)

	est := &Estimate{
		Price:    discount * mean,
		NumPaths: numPaths,
		Steps:    steps,
		Horizon:  horizon,
	}
	if numPaths > 1 {
		variance := math.Max((total.sumSq-n*mean*mean)/(n-1), 0)
		est.StdErr = discount * stat.StdErr(math.Sqrt(variance), n)
	}

	if math.IsNaN(est.Price) || math.IsInf(est.Price, 0) {
		return nil, errors.NumericDegeneracyf("monte carlo price of %s is not finite", opt)
	}

	elapsed := time.Since(startTime)
	e.recorder.RecordPricing(opt.Variant.String(), engineName, numPaths, elapsed)
	e.log.Debugf("Priced %s: paths=%d steps=%d horizon=%.4f price=%.6f stderr=%.6f in %v",
		opt, numPaths, steps, horizon, est.Price, est.StdErr, elapsed)

	return est, nil
}

// simulateChunk runs paths [first, last). Each path reseeds the chunk's own
// generator, so the draws for path i never depend on which worker ran it.
func (e *MonteCarloEngine) simulateChunk(gen *PathGenerator, eval Evaluator, callSeed uint64, first, last int) (partialSum, error) {
	var p partialSum
	rng := rand.New(rand.NewSource(callSeed))

	var buf *[]float64
	if eval.PathDependent() {
		buf = e.buffers.Get(gen.Steps() + 1)
		defer e.buffers.Put(buf)
	}

	for i := first; i < last; i++ {
		rng.Seed(pathSeed(callSeed, i))

		var payoff float64
		var err error
		if eval.PathDependent() {
			payoff, err = eval.Path(gen.Simulate(rng, *buf))
		} else {
			payoff, err = eval.Terminal(gen.SimulateTerminal(rng))
		}
		if err != nil {
			return partialSum{}, err
		}

		p.sum += payoff
		p.sumSq += payoff * payoff
	}
	return p, nil
}
