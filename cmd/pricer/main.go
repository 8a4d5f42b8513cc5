package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rzzdr/option-hedging-sim/config"
	"github.com/rzzdr/option-hedging-sim/internal/hedging"
	"github.com/rzzdr/option-hedging-sim/internal/pricing"
	"github.com/rzzdr/option-hedging-sim/pkg/metrics"
	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/logger"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/performance"
)

type cliFlags struct {
	configPath string
	logLevel   string

	spot       float64
	rate       float64
	volatility float64
	dividend   float64

	variant      string
	optionType   string
	strike       float64
	maturity     float64
	barrierLevel float64
	barrierKind  string

	paths      int
	steps      int
	seed       uint64
	hedge      bool
	hedgeSteps int
	hedgeRuns  int
	dumpStats  bool
	profileDir string
}

func parseFlags() (*cliFlags, map[string]bool) {
	f := &cliFlags{}
	flag.StringVar(&f.configPath, "config", config.GetConfigPath(), "Path to a YAML config file")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	flag.Float64Var(&f.spot, "spot", 0, "Spot price of the underlying")
	flag.Float64Var(&f.rate, "rate", 0, "Continuously compounded risk-free rate")
	flag.Float64Var(&f.volatility, "vol", 0, "Annualised volatility")
	flag.Float64Var(&f.dividend, "div", 0, "Continuous dividend yield")

	flag.StringVar(&f.variant, "variant", "vanilla", "Option variant: vanilla, barrier, asian, lookback")
	flag.StringVar(&f.optionType, "type", "call", "Option type: call or put")
	flag.Float64Var(&f.strike, "strike", 100, "Strike price")
	flag.Float64Var(&f.maturity, "maturity", 1, "Maturity in years")
	flag.Float64Var(&f.barrierLevel, "barrier", 0, "Barrier level (barrier variant only)")
	flag.StringVar(&f.barrierKind, "barrier-kind", "up-and-out", "Barrier kind: up-and-out, down-and-out, up-and-in, down-and-in")

	flag.IntVar(&f.paths, "paths", 0, "Monte Carlo paths")
	flag.IntVar(&f.steps, "steps", 0, "Time steps per path")
	flag.Uint64Var(&f.seed, "seed", 0, "Random seed, 0 for a fresh one")
	flag.BoolVar(&f.hedge, "hedge", false, "Also run the delta-hedging simulation")
	flag.IntVar(&f.hedgeSteps, "hedge-steps", 0, "Rebalancing dates for hedging")
	flag.IntVar(&f.hedgeRuns, "hedge-runs", 0, "Independent hedging runs to summarise")
	flag.BoolVar(&f.dumpStats, "metrics", false, "Print collected metrics in Prometheus text format")
	flag.StringVar(&f.profileDir, "profile-dir", "", "Write CPU and heap profiles to this directory")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// applyOverrides lets explicitly set flags win over the config file
func applyOverrides(cfg *config.Config, f *cliFlags, set map[string]bool) {
	if set["log-level"] {
		cfg.App.LogLevel = f.logLevel
	}
	if set["spot"] {
		cfg.Market.Spot = f.spot
	}
	if set["rate"] {
		cfg.Market.Rate = f.rate
	}
	if set["vol"] {
		cfg.Market.Volatility = f.volatility
	}
	if set["div"] {
		cfg.Market.Dividend = f.dividend
	}
	if set["paths"] {
		cfg.Pricing.NumPaths = f.paths
		cfg.Hedging.NumPaths = f.paths
	}
	if set["steps"] {
		cfg.Pricing.Steps = f.steps
	}
	if set["seed"] {
		cfg.Pricing.Seed = f.seed
	}
	if set["hedge-steps"] {
		cfg.Hedging.Steps = f.hedgeSteps
	}
	if set["hedge-runs"] {
		cfg.Hedging.Runs = f.hedgeRuns
	}
	if set["metrics"] {
		cfg.Metrics.Enabled = f.dumpStats
	}
}

func buildOption(f *cliFlags) (models.OptionSpec, error) {
	variant, err := models.ParseVariant(f.variant)
	if err != nil {
		return models.OptionSpec{}, err
	}
	optionType, err := models.ParseOptionType(f.optionType)
	if err != nil {
		return models.OptionSpec{}, err
	}

	switch variant {
	case models.VariantBarrier:
		kind, err := models.ParseBarrierKind(f.barrierKind)
		if err != nil {
			return models.OptionSpec{}, err
		}
		return models.NewBarrier(f.strike, f.maturity, f.barrierLevel, kind, optionType)
	case models.VariantAsian:
		return models.NewAsian(f.strike, f.maturity, optionType)
	case models.VariantLookback:
		return models.NewLookback(f.strike, f.maturity, optionType)
	default:
		return models.NewVanilla(f.strike, f.maturity, optionType)
	}
}

func main() {
	f, set := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, f, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("pricer.main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var profiler *performance.Profiler
	if f.profileDir != "" {
		profiler = performance.NewProfiler(performance.ProfilerConfig{
			EnableCPU:    true,
			EnableMemory: true,
			OutputDir:    f.profileDir,
		})
		if err := profiler.Start(); err != nil {
			log.Fatalf("Failed to start profiler: %v", err)
		}
	}

	err = run(ctx, cfg, f)
	if profiler != nil {
		if perr := profiler.Stop(); perr != nil {
			log.Warnf("Failed to stop profiler: %v", perr)
		}
	}
	if err != nil {
		log.Errorf("Run failed (%s): %v", errors.TypeOf(err), err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f *cliFlags) error {
	log := logger.GetLogger("pricer.main")

	model, err := models.NewMarketModel(cfg.Market.Spot, cfg.Market.Rate, cfg.Market.Volatility, cfg.Market.Dividend)
	if err != nil {
		return err
	}
	opt, err := buildOption(f)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	seeds := pricing.NewSeedSource(cfg.Pricing.Seed)
	engine := pricing.NewMonteCarloEngine(
		pricing.EngineConfig{
			Workers:   cfg.Pricing.Workers,
			ChunkSize: cfg.Pricing.ChunkSize,
			Seed:      cfg.Pricing.Seed,
		},
		pricing.WithRecorder(recorder),
		pricing.WithSeedSource(seeds),
	)
	analytic := pricing.NewAnalyticEngine()

	log.Infof("Pricing %s with S=%.4g r=%.4g sigma=%.4g q=%.4g", opt, model.Spot, model.Rate, model.Volatility, model.Dividend)
	fmt.Printf("Option: %s\n", opt)

	if opt.Variant == models.VariantVanilla {
		startTime := time.Now()
		price, err := analytic.Price(opt, model)
		if err != nil {
			return err
		}
		recorder.RecordPricing(opt.Variant.String(), "analytic", 0, time.Since(startTime))

		greeks, err := analytic.Greeks(opt, model)
		if err != nil {
			return err
		}
		fmt.Printf("Analytic price:     %.6f\n", price)
		fmt.Printf("Greeks:             delta=%.6f gamma=%.6f theta=%.6f vega=%.6f rho=%.6f\n",
			greeks.Delta, greeks.Gamma, greeks.Theta, greeks.Vega, greeks.Rho)
	}

	est, err := engine.Estimate(ctx, opt, model, cfg.Pricing.NumPaths, cfg.Pricing.Steps)
	if err != nil {
		return err
	}
	fmt.Printf("Monte Carlo price:  %.6f (stderr %.6f, %d paths, %d steps)\n", est.Price, est.StdErr, est.NumPaths, est.Steps)

	if f.hedge {
		sim, err := hedging.NewSimulator(
			hedging.Config{
				NumPaths:        cfg.Hedging.NumPaths,
				BumpRatio:       cfg.Hedging.BumpRatio,
				Workers:         cfg.Hedging.Workers,
				ConfidenceLevel: cfg.Hedging.ConfidenceLevel,
			},
			engine,
			hedging.WithRecorder(recorder),
			hedging.WithSeedSource(seeds),
		)
		if err != nil {
			return err
		}

		if cfg.Hedging.Runs == 1 {
			res, err := sim.Run(ctx, opt, model, cfg.Hedging.Steps)
			if err != nil {
				return err
			}
			fmt.Printf("Replication cost:   %.6f (%d rebalances, final spot %.4f)\n",
				res.Cost, res.Rebalances, res.Trajectory[len(res.Trajectory)-1])
			if opt.Variant == models.VariantBarrier {
				fmt.Printf("Barrier touched:    %t\n", res.KnockedIn || res.KnockedOut)
			}
		} else {
			summary, err := sim.Distribution(ctx, opt, model, cfg.Hedging.Steps, cfg.Hedging.Runs)
			if err != nil {
				return err
			}
			fmt.Printf("Replication cost:   mean %.6f stddev %.6f stderr %.6f [%.6f, %.6f] over %d runs\n",
				summary.Mean, summary.StdDev, summary.StdErr, summary.Min, summary.Max, summary.Runs)
			fmt.Printf("Cost tail:          VaR(%.3g) %.6f ES %.6f\n",
				cfg.Hedging.ConfidenceLevel, summary.ValueAtRisk, summary.ExpectedShortfall)
		}
	}

	if cfg.Metrics.Enabled {
		recorder.UpdateRuntimeMetrics()
		if err := recorder.WriteText(os.Stdout); err != nil {
			return errors.Wrap(err, "failed to write metrics")
		}
	}
	return nil
}
