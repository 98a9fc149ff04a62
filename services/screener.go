package services

import (
	"context"
	"math"
	"sort"
	"stocktimus/interfaces"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ScreenerConfig holds the screening windows and the defaults applied to
// parameter sets that omit or garble a field
type ScreenerConfig struct {
	ExpirationWindowDays    int
	StrikeBand              float64
	CandidatesPerExpiration int
	ChainLimit              int

	DefaultOptionType          interfaces.OptionType
	DefaultDaysUntilExpiration int
	DefaultStrikePct           float64
	DefaultDaysToGain          int
	DefaultStockGainPct        float64
}

// DefaultScreenerConfig returns the standard screening windows
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		ExpirationWindowDays:       30,
		StrikeBand:                 0.05,
		CandidatesPerExpiration:    2,
		ChainLimit:                 1000,
		DefaultOptionType:          interfaces.OptionTypeCall,
		DefaultDaysUntilExpiration: 90,
		DefaultStrikePct:           0.20,
		DefaultDaysToGain:          30,
		DefaultStockGainPct:        0.10,
	}
}

// ScreenerAnalyzer scans tickers for contracts near a target strike and
// expiration and estimates their value after an assumed underlying move
type ScreenerAnalyzer struct {
	gateway   interfaces.MarketDataGateway
	config    ScreenerConfig
	simulator SimulatorConfig
	logger    *logrus.Logger
}

// NewScreenerAnalyzer creates a new screener
func NewScreenerAnalyzer(gateway interfaces.MarketDataGateway, config ScreenerConfig, simulator SimulatorConfig, logger *logrus.Logger) *ScreenerAnalyzer {
	if logger == nil {
		logger = newDefaultLogger()
	}
	def := DefaultScreenerConfig()
	if config.ExpirationWindowDays <= 0 {
		config.ExpirationWindowDays = def.ExpirationWindowDays
	}
	if config.StrikeBand <= 0 {
		config.StrikeBand = def.StrikeBand
	}
	if config.CandidatesPerExpiration <= 0 {
		config.CandidatesPerExpiration = def.CandidatesPerExpiration
	}
	if config.ChainLimit <= 0 {
		config.ChainLimit = def.ChainLimit
	}
	if config.DefaultOptionType == "" {
		config.DefaultOptionType = def.DefaultOptionType
	}
	if config.DefaultDaysUntilExpiration <= 0 {
		config.DefaultDaysUntilExpiration = def.DefaultDaysUntilExpiration
	}
	if config.DefaultDaysToGain <= 0 {
		config.DefaultDaysToGain = def.DefaultDaysToGain
	}
	return &ScreenerAnalyzer{
		gateway:   gateway,
		config:    config,
		simulator: simulator.withDefaults(),
		logger:    logger,
	}
}

// screenRun is a parameter set after coercion
type screenRun struct {
	label               string
	tickers             []string
	optionType          interfaces.OptionType
	daysUntilExpiration int
	strikePct           float64
	daysToGain          int
	stockGainPct        float64
	allocation          float64
}

// Screen runs every parameter set in order and concatenates the candidates.
// A ticker that fails is logged and skipped.
func (s *ScreenerAnalyzer) Screen(ctx context.Context, paramSets []interfaces.ScreenerParams) []interfaces.ScreenerResult {
	results := []interfaces.ScreenerResult{}
	for _, params := range paramSets {
		run := s.resolve(params)
		results = append(results, s.screenRun(ctx, run)...)
	}
	return results
}

func (s *ScreenerAnalyzer) resolve(params interfaces.ScreenerParams) screenRun {
	run := screenRun{
		label:               params.Label,
		optionType:          s.config.DefaultOptionType,
		daysUntilExpiration: positiveIntOr(params.DaysUntilExpiration, s.config.DefaultDaysUntilExpiration),
		strikePct:           floatOr(params.StrikePct, s.config.DefaultStrikePct),
		daysToGain:          positiveIntOr(params.DaysToGain, s.config.DefaultDaysToGain),
		stockGainPct:        floatOr(params.StockGainPct, s.config.DefaultStockGainPct),
		allocation:          positiveFloatOr(params.Allocation, 0),
	}

	if params.OptionType != "" {
		if t, err := interfaces.ParseOptionType(params.OptionType); err == nil {
			run.optionType = t
		} else {
			s.logger.WithFields(logrus.Fields{
				"label":       params.Label,
				"option_type": params.OptionType,
			}).Warn("Unknown option type, using default")
		}
	}

	for _, t := range params.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			run.tickers = append(run.tickers, t)
		}
	}
	return run
}

func (s *ScreenerAnalyzer) screenRun(ctx context.Context, run screenRun) []interfaces.ScreenerResult {
	now := s.simulator.Now()
	today := interfaces.TruncateDay(now)
	expFrom := today.AddDate(0, 0, run.daysUntilExpiration-s.config.ExpirationWindowDays)
	expTo := today.AddDate(0, 0, run.daysUntilExpiration+s.config.ExpirationWindowDays)

	var results []interfaces.ScreenerResult
	for _, ticker := range run.tickers {
		if ctx.Err() != nil {
			s.logger.WithError(ctx.Err()).Warn("Screen canceled")
			break
		}

		rows, err := s.screenTicker(ctx, run, ticker, today, expFrom, expTo)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"label":  run.label,
			}).WithError(err).Warn("Skipping ticker")
			continue
		}
		results = append(results, rows...)
	}

	s.logger.WithFields(logrus.Fields{
		"label":   run.label,
		"tickers": len(run.tickers),
		"results": len(results),
	}).Info("Screen completed")
	return results
}

func (s *ScreenerAnalyzer) screenTicker(ctx context.Context, run screenRun, ticker string, today, expFrom, expTo time.Time) ([]interfaces.ScreenerResult, error) {
	price, err := s.gateway.CurrentPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if !(price > 0) || !isFinite(price) {
		return nil, ErrPriceUnavailable
	}

	target := price * (1 + run.strikePct)
	quotes, err := s.gateway.FindContracts(ctx, interfaces.ContractQuery{
		Ticker:         ticker,
		Type:           run.optionType,
		StrikeFrom:     target * (1 - s.config.StrikeBand),
		StrikeTo:       target * (1 + s.config.StrikeBand),
		ExpirationFrom: expFrom,
		ExpirationTo:   expTo,
		Limit:          s.config.ChainLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		s.logger.WithField("ticker", ticker).Info("No options data returned")
		return nil, nil
	}

	candidates := NearestStrikes(quotes, target, s.config.CandidatesPerExpiration)

	simulated := price * (1 + run.stockGainPct)
	evalDate := today.AddDate(0, 0, run.daysToGain)

	results := make([]interfaces.ScreenerResult, 0, len(candidates))
	for _, q := range candidates {
		if !(q.Strike > 0) || q.Expiration.IsZero() {
			continue
		}

		last := LastPrice(&q)
		iv := s.simulator.VolatilityFloor
		if q.ImpliedVolatility != nil && *q.ImpliedVolatility > 0 && isFinite(*q.ImpliedVolatility) {
			iv = *q.ImpliedVolatility
		}
		tEval := math.Max(float64(daysBetween(evalDate, q.Expiration))/365, s.simulator.MinTimeToExpiry)
		estimate := BlackScholesPrice(run.optionType, simulated, q.Strike, tEval, s.simulator.RiskFreeRate, iv)

		moneyness := (q.Strike - price) / price * 100
		if run.optionType == interfaces.OptionTypePut {
			moneyness = (price - q.Strike) / price * 100
		}

		row := interfaces.ScreenerResult{
			Ticker:              ticker,
			OptionType:          run.optionType,
			Expiration:          q.Expiration.Format(dateLayout),
			Strike:              q.Strike,
			PctOTMITM:           round2(moneyness),
			UnderlyingPrice:     round2(price),
			SimulatedUnderlying: round2(simulated),
			CurrentPremium:      round2(last),
			SimulatedPremium:    round2(estimate),
			DaysUntilExpiration: daysBetween(today, q.Expiration),
			DaysToGain:          run.daysToGain,
			UnderlyingGainPct:   round2(run.stockGainPct * 100),
			ImpliedVolatility:   round2(iv * 100),
			Delta:               interfaces.NewGreek(q.Greeks.Delta),
			Theta:               interfaces.NewGreek(q.Greeks.Theta),
			Gamma:               interfaces.NewGreek(q.Greeks.Gamma),
			Vega:                interfaces.NewGreek(q.Greeks.Vega),
			Rho:                 interfaces.NewGreek(q.Greeks.Rho),
			Bid:                 round2Ptr(q.Bid),
			Ask:                 round2Ptr(q.Ask),
			LastPremium:         round2Ptr(q.Last),
			Volume:              q.Volume,
			OpenInterest:        q.OpenInterest,
			RunLabel:            run.label,
		}

		if last != 0 && estimate != 0 {
			gain := interfaces.PercentChange(last, estimate)
			row.PremiumGainPct = round2(gain)
			if run.allocation > 0 {
				row.AllocatedEquity = round2(run.allocation)
				row.SimulatedEquity = round2(run.allocation * (1 + gain/100))
			}
		}

		results = append(results, row)
	}
	return results, nil
}

// NearestStrikes groups quotes by expiration, in order of first appearance,
// and keeps the n strikes closest to target in each group. Equal distances
// keep listing order.
func NearestStrikes(quotes []interfaces.OptionQuote, target float64, n int) []interfaces.OptionQuote {
	var order []string
	groups := make(map[string][]interfaces.OptionQuote)
	for _, q := range quotes {
		exp := q.Expiration.Format(dateLayout)
		if _, ok := groups[exp]; !ok {
			order = append(order, exp)
		}
		groups[exp] = append(groups[exp], q)
	}

	var selected []interfaces.OptionQuote
	for _, exp := range order {
		group := groups[exp]
		sort.SliceStable(group, func(i, j int) bool {
			return math.Abs(group[i].Strike-target) < math.Abs(group[j].Strike-target)
		})
		if len(group) > n {
			group = group[:n]
		}
		selected = append(selected, group...)
	}
	return selected
}
