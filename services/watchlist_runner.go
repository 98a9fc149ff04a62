package services

import (
	"context"
	"stocktimus/interfaces"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// EmptyWatchlistNote is reported when no contract of a run could be simulated
const EmptyWatchlistNote = "Simulation returned no results. Check if contract exists with the market data provider."

// fallbackDaysToGain is used when the expiration of an input cannot be read
const fallbackDaysToGain = 30

// WatchlistRunner runs a user watchlist: it fills in missing horizons,
// simulates the contracts and reconciles each row with the request that
// produced it
type WatchlistRunner struct {
	aggregator *PortfolioAggregator
	multiplier float64
	now        func() time.Time
	logger     *logrus.Logger
}

// NewWatchlistRunner creates a new watchlist runner
func NewWatchlistRunner(aggregator *PortfolioAggregator, config SimulatorConfig, logger *logrus.Logger) *WatchlistRunner {
	if logger == nil {
		logger = newDefaultLogger()
	}
	config = config.withDefaults()
	return &WatchlistRunner{
		aggregator: aggregator,
		multiplier: config.ContractMultiplier,
		now:        config.Now,
		logger:     logger,
	}
}

// EmptyWatchlistRow is the sentinel row returned in place of an empty run
func EmptyWatchlistRow() interfaces.EmptyResultRow {
	return interfaces.EmptyResultRow{Ticker: "N/A", Note: EmptyWatchlistNote}
}

// SimulateContracts returns the scenario rows of every contract that could be
// simulated, in input order, with cost basis and labels taken from the
// matching input. An empty result means every contract failed.
func (r *WatchlistRunner) SimulateContracts(ctx context.Context, specs []interfaces.ContractSpec) []interfaces.ScenarioResult {
	prepared := make([]interfaces.ContractSpec, len(specs))
	inputs := make(map[ContractKey]interfaces.ContractSpec, len(specs))

	for i, spec := range specs {
		spec = r.withDaysToGain(spec)
		prepared[i] = spec

		key, ok := KeyForSpec(spec)
		if !ok {
			continue
		}
		if _, seen := inputs[key]; !seen {
			inputs[key] = spec
		}
	}

	rows := r.aggregator.SimulateAll(ctx, prepared)

	processed := make([]interfaces.ScenarioResult, 0, len(rows))
	for _, row := range rows {
		key := KeyForResult(row)
		input, ok := inputs[key]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"ticker":     row.Ticker,
				"type":       row.OptionType,
				"strike":     row.Strike,
				"expiration": row.Expiration,
			}).Warn("No matching input contract for result row")
			continue
		}
		processed = append(processed, r.reconcile(row, input))
	}
	return processed
}

// withDaysToGain fills in a missing horizon from the expiration
func (r *WatchlistRunner) withDaysToGain(spec interfaces.ContractSpec) interfaces.ContractSpec {
	if positiveIntOr(spec.DaysToGain, 0) > 0 {
		return spec
	}

	days := fallbackDaysToGain
	if expiration, ok := parseDate(spec.Expiration); ok {
		days = DefaultDaysToGain(expiration, r.now())
	}
	spec.DaysToGain = interfaces.Loose(strconv.Itoa(days))
	return spec
}

// reconcile applies the user's cost basis: a positive input cost wins,
// otherwise the current premium is used
func (r *WatchlistRunner) reconcile(row interfaces.ScenarioResult, input interfaces.ContractSpec) interfaces.ScenarioResult {
	contracts := positiveIntOr(input.NumberOfContracts, 1)

	cost := 0.0
	if row.CurrentPremium != nil {
		cost = *row.CurrentPremium
	}
	cost = positiveFloatOr(input.AverageCostPerContract, cost)

	row.NumberOfContracts = contracts
	row.AverageCost = round2(cost)
	row.EquityInvested = round2(cost * float64(contracts) * r.multiplier)
	row.Label = input.Label
	return row
}
