package pricing

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/option-hedging-sim/pkg/models"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
	"github.com/rzzdr/option-hedging-sim/pkg/utils/logger"
)

// Greeks of a vanilla option
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64 // per calendar day
	Vega  float64 // per 1% change in volatility
	Rho   float64 // per 1% change in rate
}

// AnalyticEngine implements the closed-form Black-Scholes formula with a
// continuous dividend yield. It only prices vanilla options.
type AnalyticEngine struct {
	log *logger.Logger
}

// NewAnalyticEngine creates a new closed-form pricer
func NewAnalyticEngine() *AnalyticEngine {
	return &AnalyticEngine{
		log: logger.GetLogger("pricing.analytic"),
	}
}

// Price returns the present value of a vanilla option at its own maturity
func (a *AnalyticEngine) Price(opt models.OptionSpec, model models.MarketModel) (float64, error) {
	return a.priceAt(opt, model, opt.Maturity)
}

// PriceAt matches the Monte Carlo engine's signature so that either engine
// can back a finite-difference delta. Path and step counts are ignored.
func (a *AnalyticEngine) PriceAt(_ context.Context, opt models.OptionSpec, model models.MarketModel, _ int, _ int, horizon float64) (float64, error) {
	return a.priceAt(opt, model, horizon)
}

func (a *AnalyticEngine) priceAt(opt models.OptionSpec, model models.MarketModel, horizon float64) (float64, error) {
	if err := a.check(opt, model); err != nil {
		return 0, err
	}

	// At or past expiry the option is worth its exercise value.
	if horizon <= 0 {
		return opt.Intrinsic(model.Spot), nil
	}

	S, K, r, q, sigma, T := model.Spot, opt.Strike, model.Rate, model.Dividend, model.Volatility, horizon
	if opt.IsCall() {
		return calculateCallPrice(S, K, r, q, T, sigma), nil
	}
	return calculatePutPrice(S, K, r, q, T, sigma), nil
}

// Delta returns dV/dS with time-to-maturity horizon. At horizon <= 0 it
// returns the expiry delta (0 or ±1) instead of evaluating d1.
func (a *AnalyticEngine) Delta(opt models.OptionSpec, model models.MarketModel, horizon float64) (float64, error) {
	if err := a.check(opt, model); err != nil {
		return 0, err
	}

	if horizon <= 0 {
		return expiryDelta(opt, model.Spot), nil
	}

	d1, _ := calculateD1D2(model.Spot, opt.Strike, model.Rate, model.Dividend, horizon, model.Volatility)
	if opt.IsCall() {
		return math.Exp(-model.Dividend*horizon) * normalCDF(d1), nil
	}
	return math.Exp(-model.Dividend*horizon) * (normalCDF(d1) - 1), nil
}

// Greeks calculates the Greeks at the option's own maturity
func (a *AnalyticEngine) Greeks(opt models.OptionSpec, model models.MarketModel) (*Greeks, error) {
	if err := a.check(opt, model); err != nil {
		return nil, err
	}

	S, K, r, q, sigma, T := model.Spot, opt.Strike, model.Rate, model.Dividend, model.Volatility, opt.Maturity
	d1, d2 := calculateD1D2(S, K, r, q, T, sigma)
	greeks := &Greeks{}

	if opt.IsCall() {
		greeks.Delta = math.Exp(-q*T) * normalCDF(d1)
	} else {
		greeks.Delta = math.Exp(-q*T) * (normalCDF(d1) - 1)
	}

	greeks.Gamma = math.Exp(-q*T) * normalPDF(d1) / (S * sigma * math.Sqrt(T))

	term1 := -S * sigma * math.Exp(-q*T) * normalPDF(d1) / (2 * math.Sqrt(T))
	if opt.IsCall() {
		term2 := -r * K * math.Exp(-r*T) * normalCDF(d2)
		term3 := q * S * math.Exp(-q*T) * normalCDF(d1)
		greeks.Theta = (term1 + term2 + term3) / 365
	} else {
		term2 := r * K * math.Exp(-r*T) * normalCDF(-d2)
		term3 := -q * S * math.Exp(-q*T) * normalCDF(-d1)
		greeks.Theta = (term1 + term2 + term3) / 365
	}

	greeks.Vega = S * math.Exp(-q*T) * normalPDF(d1) * math.Sqrt(T) / 100

	if opt.IsCall() {
		greeks.Rho = K * T * math.Exp(-r*T) * normalCDF(d2) / 100
	} else {
		greeks.Rho = -K * T * math.Exp(-r*T) * normalCDF(-d2) / 100
	}

	return greeks, nil
}

func (a *AnalyticEngine) check(opt models.OptionSpec, model models.MarketModel) error {
	if opt.Variant != models.VariantVanilla {
		a.log.Debugf("Closed form requested for %s option", opt.Variant)
		return errors.UnsupportedOperationf("closed-form pricing is only available for vanilla options, got %s", opt.Variant)
	}
	if err := opt.Validate(); err != nil {
		return err
	}
	return model.Validate()
}

func expiryDelta(opt models.OptionSpec, spot float64) float64 {
	switch {
	case opt.IsCall() && spot > opt.Strike:
		return 1
	case !opt.IsCall() && spot < opt.Strike:
		return -1
	default:
		return 0
	}
}

func calculateD1D2(S, K, r, q, T, sigma float64) (float64, float64) {
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return d1, d1 - sigma*math.Sqrt(T)
}

func calculateCallPrice(S, K, r, q, T, sigma float64) float64 {
	d1, d2 := calculateD1D2(S, K, r, q, T, sigma)
	return S*math.Exp(-q*T)*normalCDF(d1) - K*math.Exp(-r*T)*normalCDF(d2)
}

func calculatePutPrice(S, K, r, q, T, sigma float64) float64 {
	d1, d2 := calculateD1D2(S, K, r, q, T, sigma)
	return K*math.Exp(-r*T)*normalCDF(-d2) - S*math.Exp(-q*T)*normalCDF(-d1)
}

func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
