package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"stocktimus/interfaces"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SimulatorConfig holds the pricing constants used by the scenario simulator
type SimulatorConfig struct {
	RiskFreeRate       float64
	VolatilityFloor    float64
	Scenarios          []float64 // fractional moves, also the output row order
	MinTimeToExpiry    float64   // years
	ContractMultiplier float64
	Now                func() time.Time
}

// DefaultScenarios are the underlying moves simulated for every contract
var DefaultScenarios = []float64{0.05, 0.10, 0.20, 0.35, 0.50, 1.0, 2.0}

// DefaultSimulatorConfig returns the standard constants
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		RiskFreeRate:       0.05,
		VolatilityFloor:    0.30,
		Scenarios:          append([]float64(nil), DefaultScenarios...),
		MinTimeToExpiry:    0.0001,
		ContractMultiplier: 100,
		Now:                time.Now,
	}
}

func (c SimulatorConfig) withDefaults() SimulatorConfig {
	def := DefaultSimulatorConfig()
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = def.RiskFreeRate
	}
	if c.VolatilityFloor <= 0 {
		c.VolatilityFloor = def.VolatilityFloor
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = def.Scenarios
	}
	if c.MinTimeToExpiry <= 0 {
		c.MinTimeToExpiry = def.MinTimeToExpiry
	}
	if c.ContractMultiplier <= 0 {
		c.ContractMultiplier = def.ContractMultiplier
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c
}

// DefaultDaysToGain is half the calendar days to expiration, at least 1
func DefaultDaysToGain(expiration, now time.Time) int {
	dte := daysBetween(now, expiration)
	return max(1, int(math.Round(0.5*float64(dte))))
}

// ScenarioSimulator values one contract across the configured underlying moves
type ScenarioSimulator struct {
	gateway interfaces.MarketDataGateway
	config  SimulatorConfig
	logger  *logrus.Logger
}

// NewScenarioSimulator creates a new scenario simulator
func NewScenarioSimulator(gateway interfaces.MarketDataGateway, config SimulatorConfig, logger *logrus.Logger) *ScenarioSimulator {
	if logger == nil {
		logger = newDefaultLogger()
	}
	return &ScenarioSimulator{
		gateway: gateway,
		config:  config.withDefaults(),
		logger:  logger,
	}
}

// Config returns the resolved simulator constants
func (s *ScenarioSimulator) Config() SimulatorConfig {
	return s.config
}

// Simulate returns one row per scenario for the contract, or a
// *SimulationError. It does not panic.
func (s *ScenarioSimulator) Simulate(ctx context.Context, spec interfaces.ContractSpec) (rows []interfaces.ScenarioResult, err error) {
	ticker := strings.ToUpper(strings.TrimSpace(spec.Ticker))

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"panic":  r,
			}).Error("Simulation panicked")
			rows = nil
			err = &SimulationError{Ticker: ticker, Err: fmt.Errorf("simulation failed: %v", r)}
		}
	}()

	if ticker == "" {
		return nil, &SimulationError{Err: fmt.Errorf("%w: missing ticker", ErrInvalidInput)}
	}

	strike, ok := parsePositiveFloat(spec.Strike)
	if !ok {
		return nil, &SimulationError{Ticker: ticker, Err: fmt.Errorf("%w: Invalid strike value: %s", ErrInvalidInput, spec.Strike)}
	}

	optionType, typeErr := interfaces.ParseOptionType(string(spec.OptionType))
	if typeErr != nil {
		return nil, &SimulationError{Ticker: ticker, Err: fmt.Errorf("%w: %v", ErrInvalidInput, typeErr)}
	}

	expiration, ok := parseDate(spec.Expiration)
	if !ok {
		return nil, &SimulationError{Ticker: ticker, Err: fmt.Errorf("%w: invalid expiration %q", ErrInvalidInput, spec.Expiration)}
	}

	underlying, priceErr := s.gateway.CurrentPrice(ctx, ticker)
	if priceErr != nil {
		return nil, &SimulationError{Ticker: ticker, Err: fmt.Errorf("%w: %w", ErrPriceUnavailable, priceErr)}
	}
	if !(underlying > 0) || !isFinite(underlying) {
		return nil, &SimulationError{Ticker: ticker, Err: ErrPriceUnavailable}
	}

	quote, quoteErr := FindOptionQuote(ctx, s.gateway, s.logger, ticker, optionType, strike, expiration)
	if quoteErr != nil {
		return nil, &SimulationError{Ticker: ticker, Err: quoteErr}
	}

	now := s.config.Now()
	lastPrice := LastPrice(quote)
	iv := s.resolveVolatility(quote.ImpliedVolatility)

	daysToGain := positiveIntOr(spec.DaysToGain, 0)
	if daysToGain == 0 && !spec.EvaluateToday {
		daysToGain = DefaultDaysToGain(expiration, now)
	}
	contracts := positiveIntOr(spec.NumberOfContracts, 1)
	avgCost := positiveFloatOr(spec.AverageCostPerContract, lastPrice)

	tEval := s.timeToEvaluation(expiration, now, daysToGain)
	mult := float64(contracts) * s.config.ContractMultiplier
	equityInvested := avgCost * mult

	s.logger.WithFields(logrus.Fields{
		"ticker":       ticker,
		"type":         optionType,
		"strike":       strike,
		"quoted":       quote.Strike,
		"expiration":   expiration.Format(dateLayout),
		"underlying":   underlying,
		"last":         lastPrice,
		"iv":           iv,
		"days_to_gain": daysToGain,
		"t_eval":       tEval,
	}).Debug("Simulating contract")

	rows = make([]interfaces.ScenarioResult, 0, len(s.config.Scenarios))
	for _, pct := range s.config.Scenarios {
		up := underlying * (1 + pct)
		down := underlying * (1 - pct)
		premiumUp := BlackScholesPrice(optionType, up, strike, tEval, s.config.RiskFreeRate, iv)
		premiumDown := BlackScholesPrice(optionType, down, strike, tEval, s.config.RiskFreeRate, iv)

		rows = append(rows, interfaces.ScenarioResult{
			Ticker:                ticker,
			OptionType:            optionType,
			Strike:                strike,
			Expiration:            expiration.Format(dateLayout),
			Label:                 spec.Label,
			ScenarioLabel:         ScenarioLabel(pct),
			ScenarioPercent:       math.Round(pct*10000) / 100,
			CurrentUnderlying:     round2(underlying),
			SimulatedUnderlyingUp: round2(up),
			SimulatedUnderlyingDn: round2(down),
			CurrentPremium:        round2(lastPrice),
			SimulatedPremiumUp:    round2(premiumUp),
			SimulatedPremiumUpPct: round2(interfaces.PercentChange(lastPrice, premiumUp)),
			SimulatedPremiumDn:    round2(premiumDown),
			SimulatedPremiumDnPct: round2(interfaces.PercentChange(lastPrice, premiumDown)),
			DaysToGain:            daysToGain,
			NumberOfContracts:     contracts,
			AverageCost:           round2(avgCost),
			EquityInvested:        round2(equityInvested),
			SimulatedEquityUp:     round2(premiumUp * mult),
			SimulatedEquityDn:     round2(premiumDown * mult),
			QuotedStrike:          round2(quote.Strike),
			Bid:                   round2Ptr(quote.Bid),
			Ask:                   round2Ptr(quote.Ask),
			Volume:                quote.Volume,
			OpenInterest:          quote.OpenInterest,
			ImpliedVolatility:     round2(iv * 100),
			Delta:                 interfaces.NewGreek(quote.Greeks.Delta),
			Theta:                 interfaces.NewGreek(quote.Greeks.Theta),
			Gamma:                 interfaces.NewGreek(quote.Greeks.Gamma),
			Vega:                  interfaces.NewGreek(quote.Greeks.Vega),
			Rho:                   interfaces.NewGreek(quote.Greeks.Rho),
		})
	}

	return rows, nil
}

func (s *ScenarioSimulator) resolveVolatility(iv *float64) float64 {
	if iv == nil || !(*iv > 0) || !isFinite(*iv) {
		return s.config.VolatilityFloor
	}
	return *iv
}

func (s *ScenarioSimulator) timeToEvaluation(expiration, now time.Time, daysToGain int) float64 {
	evalDate := interfaces.TruncateDay(now).AddDate(0, 0, daysToGain)
	days := daysBetween(evalDate, expiration)
	return math.Max(float64(days)/365, s.config.MinTimeToExpiry)
}

// ScenarioLabel renders a move as "±5%"
func ScenarioLabel(pct float64) string {
	return fmt.Sprintf("±%d%%", int(math.Round(pct*100)))
}

// LastPrice is the quoted last trade, or the bid/ask midpoint when no trade
// was reported, or 0
func LastPrice(q *interfaces.OptionQuote) float64 {
	if q.Last != nil && isFinite(*q.Last) {
		return *q.Last
	}
	if q.Bid != nil && q.Ask != nil && isFinite(*q.Bid) && isFinite(*q.Ask) {
		return (*q.Bid + *q.Ask) / 2
	}
	return 0
}

// FindOptionQuote looks up the exact contract and, on a miss, the first
// listed contract of the same ticker, type and expiration at any strike.
// Upstream failures on either step are treated as a miss.
func FindOptionQuote(
	ctx context.Context,
	gateway interfaces.MarketDataGateway,
	logger *logrus.Logger,
	ticker string,
	optionType interfaces.OptionType,
	strike float64,
	expiration time.Time,
) (*interfaces.OptionQuote, error) {
	exact := interfaces.ContractQuery{
		Ticker:         ticker,
		Type:           optionType,
		StrikeFrom:     strike,
		StrikeTo:       strike,
		ExpirationFrom: expiration,
		ExpirationTo:   expiration,
		Limit:          1,
	}

	fields := logrus.Fields{
		"ticker":     ticker,
		"type":       optionType,
		"strike":     strike,
		"expiration": expiration.Format(dateLayout),
	}

	quotes, err := gateway.FindContracts(ctx, exact)
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("Exact contract lookup failed")
	}
	if len(quotes) > 0 {
		return &quotes[0], nil
	}

	logger.WithFields(fields).Info("No exact match found, trying fallback")

	relaxed := exact
	relaxed.StrikeFrom = 0
	relaxed.StrikeTo = 0

	quotes, fallbackErr := gateway.FindContracts(ctx, relaxed)
	if len(quotes) > 0 {
		return &quotes[0], nil
	}

	if fallbackErr != nil {
		logger.WithFields(fields).WithError(fallbackErr).Warn("Fallback contract lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrQuoteNotFound, fallbackErr)
	}
	if err != nil && !errors.Is(err, ErrQuoteNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrQuoteNotFound, err)
	}
	return nil, ErrQuoteNotFound
}
