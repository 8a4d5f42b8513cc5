package hedging

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/option-hedging-sim/internal/pricing"
	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/logger"
)

// HedgeState represents the phase a hedging run is in
type HedgeState int

const (
	// HedgeStateInit computes the opening delta and cash position
	HedgeStateInit HedgeState = iota
	// HedgeStateSimulate advances the real-world spot by one step
	HedgeStateSimulate
	// HedgeStateReprice recomputes delta over the remaining horizon
	HedgeStateReprice
	// HedgeStateRebalance trades the delta change and accrues interest
	HedgeStateRebalance
	// HedgeStateFinalize unwinds the position against the payoff
	HedgeStateFinalize
	// HedgeStateDone is terminal
	HedgeStateDone
)

func (s HedgeState) String() string {
	switch s {
	case HedgeStateInit:
		return "init"
	case HedgeStateSimulate:
		return "simulate"
	case HedgeStateReprice:
		return "reprice"
	case HedgeStateRebalance:
		return "rebalance"
	case HedgeStateFinalize:
		return "finalize"
	case HedgeStateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Recorder receives hedging metrics
type Recorder interface {
	RecordHedge(variant string, rebalances int, cost float64)
	RecordError(errType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordHedge(string, int, float64) {}
func (nopRecorder) RecordError(string)               {}

// Config contains configuration for the hedging simulator
type Config struct {
	// NumPaths is used by every nested Monte Carlo repricing
	NumPaths int
	// BumpRatio sets the finite difference bump as a fraction of spot
	BumpRatio float64
	// Workers bounds concurrent runs in Distribution
	Workers int
	// ConfidenceLevel is the quantile used for the cost VaR and ES
	ConfidenceLevel float64
}

// DefaultConfig returns 10000 nested paths and a 1% bump
func DefaultConfig() Config {
	return Config{
		NumPaths:        10000,
		BumpRatio:       0.01,
		Workers:         runtime.NumCPU(),
		ConfidenceLevel: 0.99,
	}
}

// Validate checks the simulator configuration
func (c Config) Validate() error {
	if c.NumPaths <= 0 {
		return errors.InvalidConfigurationf("hedging num_paths must be positive, got %d", c.NumPaths)
	}
	if !(c.BumpRatio > 0 && c.BumpRatio < 1) {
		return errors.InvalidConfigurationf("hedging bump_ratio must be in (0, 1), got %v", c.BumpRatio)
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return errors.InvalidConfigurationf("hedging confidence_level must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	return nil
}

// HedgeResult is the outcome of one delta-hedging run
type HedgeResult struct {
	RunID string
	// Cost is cash - delta*spot + payoff at the end of the run
	Cost float64
	// Trajectory holds the real-world spots, starting spot first
	Trajectory []float64
	// Deltas[i] is the hedge held after rebalancing at Trajectory[i]
	Deltas     []float64
	Rebalances int
	KnockedIn  bool
	KnockedOut bool
}

// CostSummary aggregates the cost of independent hedging runs
type CostSummary struct {
	Runs   int
	Mean   float64
	StdDev float64
	StdErr float64
	Min    float64
	Max    float64
	// ValueAtRisk is the cost not exceeded at the configured confidence
	ValueAtRisk float64
	// ExpectedShortfall is the mean cost at or beyond ValueAtRisk
	ExpectedShortfall float64
}

// Simulator delta-hedges a short option position along one simulated
// real-world trajectory, repricing at every rebalancing date.
type Simulator struct {
	config   Config
	pricer   Pricer
	analytic *pricing.AnalyticEngine
	seeds    *pricing.SeedSource
	delta    DeltaEstimator
	recorder Recorder
	log      *logger.Logger
}

// Option configures a Simulator
type Option func(*Simulator)

// WithDeltaEstimator replaces the per-variant default delta estimator
func WithDeltaEstimator(d DeltaEstimator) Option {
	return func(s *Simulator) {
		s.delta = d
	}
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithSeedSource sets the source for trajectory and common-random-number seeds
func WithSeedSource(src *pricing.SeedSource) Option {
	return func(s *Simulator) {
		if src != nil {
			s.seeds = src
		}
	}
}

// WithLogger replaces the simulator logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSimulator creates a hedging simulator that reprices path-dependent
// options with pricer. Vanilla options are hedged with the closed-form delta
// unless WithDeltaEstimator overrides it.
func NewSimulator(config Config, pricer Pricer, opts ...Option) (*Simulator, error) {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.ConfidenceLevel == 0 {
		config.ConfidenceLevel = 0.99
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if pricer == nil {
		return nil, errors.InvalidConfigurationf("hedging simulator needs a pricer")
	}

	s := &Simulator{
		config:   config,
		pricer:   pricer,
		analytic: pricing.NewAnalyticEngine(),
		recorder: nopRecorder{},
		log:      logger.GetLogger("hedging.simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seeds == nil {
		s.seeds = pricing.NewSeedSource(0)
	}
	return s, nil
}

// HedgeCost runs one hedging simulation and returns its replication cost
func (s *Simulator) HedgeCost(ctx context.Context, opt models.OptionSpec, model models.MarketModel, steps int) (float64, error) {
	res, err := s.Run(ctx, opt, model, steps)
	if err != nil {
		return 0, err
	}
	return res.Cost, nil
}

// Run simulates one hedging trajectory with steps rebalancing dates
func (s *Simulator) Run(ctx context.Context, opt models.OptionSpec, model models.MarketModel, steps int) (*HedgeResult, error) {
	res, err := s.run(ctx, opt, model, steps, s.seeds.NewRand())
	if err != nil {
		s.recorder.RecordError(errors.TypeOf(err).String())
		return nil, err
	}
	s.recorder.RecordHedge(opt.Variant.String(), res.Rebalances, res.Cost)
	return res, nil
}

// Distribution runs independent hedging simulations concurrently and
// summarises their costs. Run generators are drawn up front, so with a
// seeded simulator and a SeededPricer the summary does not depend on the
// worker count.
func (s *Simulator) Distribution(ctx context.Context, opt models.OptionSpec, model models.MarketModel, steps, runs int) (*CostSummary, error) {
	if runs <= 0 {
		return nil, errors.InvalidConfigurationf("number of hedging runs must be positive, got %d", runs)
	}

	rngs := make([]*rand.Rand, runs)
	for i := range rngs {
		rngs[i] = s.seeds.NewRand()
	}
	costs := make([]float64, runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := range rngs {
		i := i
		g.Go(func() error {
			res, err := s.run(gctx, opt, model, steps, rngs[i])
			if err != nil {
				return err
			}
			s.recorder.RecordHedge(opt.Variant.String(), res.Rebalances, res.Cost)
			costs[i] = res.Cost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.recorder.RecordError(errors.TypeOf(err).String())
		return nil, err
	}

	mean, std := stat.MeanStdDev(costs, nil)
	summary := &CostSummary{
		Runs: runs,
		Mean: mean,
		Min:  floats.Min(costs),
		Max:  floats.Max(costs),
	}
	if runs > 1 {
		summary.StdDev = std
		summary.StdErr = stat.StdErr(std, float64(runs))
	}
	summary.ValueAtRisk, summary.ExpectedShortfall = costTailRisk(costs, s.config.ConfidenceLevel)

	s.log.Infof("Hedged %s over %d runs: mean=%.6f stddev=%.6f VaR(%.3g)=%.6f ES=%.6f",
		opt, runs, summary.Mean, summary.StdDev, s.config.ConfidenceLevel, summary.ValueAtRisk, summary.ExpectedShortfall)
	return summary, nil
}

// hedgeRun carries the mutable state of a single run
type hedgeRun struct {
	id         string
	state      HedgeState
	opt        models.OptionSpec
	model      models.MarketModel
	steps      int
	spot       float64
	delta      float64
	cash       float64
	trajectory []float64
	deltas     []float64
	touched    bool
}

func (s *Simulator) run(ctx context.Context, opt models.OptionSpec, model models.MarketModel, steps int, rng *rand.Rand) (*HedgeResult, error) {
	if steps <= 0 {
		return nil, errors.InvalidConfigurationf("hedging steps must be positive, got %d", steps)
	}
	eval, err := pricing.NewEvaluator(opt)
	if err != nil {
		return nil, err
	}
	gen, err := pricing.NewPathGenerator(model, steps, opt.Maturity)
	if err != nil {
		return nil, err
	}
	// Nested repricing seeds come from the run's own generator, so concurrent
	// runs never interleave draws from a shared source.
	estimator := s.estimatorFor(opt, pricing.NewSeedSource(rng.Uint64()|1))

	r := &hedgeRun{
		id:         uuid.New().String(),
		state:      HedgeStateInit,
		opt:        opt,
		model:      model,
		steps:      steps,
		spot:       model.Spot,
		trajectory: make([]float64, 0, steps),
		deltas:     make([]float64, 0, steps),
	}
	log := s.log.WithField("run_id", r.id)
	startTime := time.Now()
	log.Debugf("Starting %s hedge: steps=%d spot=%.4f", opt, steps, model.Spot)

	fail := func(err error) (*HedgeResult, error) {
		log.Warnf("Hedge run failed in %s state: %v", r.state, err)
		return nil, err
	}

	// Init
	r.trajectory = append(r.trajectory, r.spot)
	if r.delta, err = s.deltaAt(ctx, estimator, r, steps, opt.Maturity); err != nil {
		return fail(err)
	}
	r.deltas = append(r.deltas, r.delta)
	r.cash = r.delta * r.spot

	dt := gen.Dt()
	growth := math.Exp(model.Rate * dt)

	// The last rebalancing date would reprice at zero remaining maturity, so
	// the loop stops one step short and Finalize settles at the last spot.
	for i := 1; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		r.state = HedgeStateSimulate
		prev := r.spot
		// Real-world move uses a uniform shock in [-0.5, 0.5), not a normal one.
		r.spot = gen.Step(r.spot, rng.Float64()-0.5)
		r.trajectory = append(r.trajectory, r.spot)
		if opt.Variant == models.VariantBarrier && !r.touched && pricing.BarrierCrossed(opt.Barrier, prev, r.spot) {
			r.touched = true
			log.Debugf("Barrier %.4f touched at step %d (spot %.4f)", opt.Barrier.Level, i, r.spot)
		}

		r.state = HedgeStateReprice
		remainingSteps := steps - i
		remainingMaturity := opt.Maturity * float64(remainingSteps) / float64(steps)
		prevDelta := r.delta
		if r.delta, err = s.deltaAt(ctx, estimator, r, remainingSteps, remainingMaturity); err != nil {
			return fail(err)
		}
		r.deltas = append(r.deltas, r.delta)

		r.state = HedgeStateRebalance
		r.cash += (r.delta - prevDelta) * r.spot
		r.cash *= growth
		if math.IsNaN(r.cash) || math.IsInf(r.cash, 0) {
			return fail(errors.NumericDegeneracyf("cash account is not finite at step %d", i))
		}
	}

	r.state = HedgeStateFinalize
	var payoff float64
	if eval.PathDependent() {
		payoff, err = eval.Path(r.trajectory)
	} else {
		payoff, err = eval.Terminal(r.spot)
	}
	if err != nil {
		return fail(err)
	}

	cost := r.cash - r.delta*r.spot + payoff
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return fail(errors.NumericDegeneracyf("hedge cost is not finite"))
	}
	r.state = HedgeStateDone

	res := &HedgeResult{
		RunID:      r.id,
		Cost:       cost,
		Trajectory: r.trajectory,
		Deltas:     r.deltas,
		Rebalances: steps - 1,
	}
	if opt.Variant == models.VariantBarrier {
		res.KnockedOut = r.touched && opt.Barrier.Kind.IsKnockOut()
		res.KnockedIn = r.touched && !opt.Barrier.Kind.IsKnockOut()
	}

	log.Debugf("Finished hedge in %v: cost=%.6f payoff=%.6f final_spot=%.4f",
		time.Since(startTime), cost, payoff, r.spot)
	return res, nil
}

// deltaAt applies the barrier overrides before delegating to the estimator.
// A knocked-out option is worthless so its hedge is flat; a knocked-in one
// is a vanilla and uses the closed form.
func (s *Simulator) deltaAt(ctx context.Context, estimator DeltaEstimator, r *hedgeRun, remainingSteps int, remainingMaturity float64) (float64, error) {
	model := r.model.WithSpot(r.spot)

	var delta float64
	var err error
	switch {
	case r.touched && r.opt.Barrier.Kind.IsKnockOut():
		delta = 0
	case r.touched:
		delta, err = s.analytic.Delta(r.opt.VanillaEquivalent(), model, remainingMaturity)
	default:
		delta, err = estimator.Delta(ctx, r.opt, model, remainingSteps, remainingMaturity)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, errors.NumericDegeneracyf("delta is not finite at spot %v", r.spot)
	}
	return delta, nil
}

func (s *Simulator) estimatorFor(opt models.OptionSpec, seeds *pricing.SeedSource) DeltaEstimator {
	if s.delta != nil {
		return s.delta
	}
	if opt.Variant == models.VariantVanilla {
		return AnalyticDelta{Engine: s.analytic}
	}
	return FiniteDifferenceDelta{
		Pricer:    s.pricer,
		NumPaths:  s.config.NumPaths,
		BumpRatio: s.config.BumpRatio,
		Seeds:     seeds,
	}
}
