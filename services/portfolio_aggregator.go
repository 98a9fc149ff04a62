package services

import (
	"context"
	"stocktimus/interfaces"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Simulator values a single contract
type Simulator interface {
	Simulate(ctx context.Context, spec interfaces.ContractSpec) ([]interfaces.ScenarioResult, error)
}

// ContractOutcome is the simulation result for one input contract
type ContractOutcome struct {
	Spec interfaces.ContractSpec
	Rows []interfaces.ScenarioResult
	Err  error
}

// PortfolioAggregator runs the simulator over a list of contracts
type PortfolioAggregator struct {
	simulator   Simulator
	concurrency int
	logger      *logrus.Logger
}

// NewPortfolioAggregator creates a new aggregator. concurrency ≤ 1 runs the
// contracts one at a time.
func NewPortfolioAggregator(simulator Simulator, concurrency int, logger *logrus.Logger) *PortfolioAggregator {
	if logger == nil {
		logger = newDefaultLogger()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &PortfolioAggregator{
		simulator:   simulator,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SimulateEach simulates every contract and returns one outcome per input,
// in input order
func (a *PortfolioAggregator) SimulateEach(ctx context.Context, specs []interfaces.ContractSpec) []ContractOutcome {
	outcomes := make([]ContractOutcome, len(specs))

	if a.concurrency == 1 {
		for i, spec := range specs {
			outcomes[i] = a.simulateOne(ctx, spec)
		}
		return outcomes
	}

	// Workers never return an error, so one failed contract cannot cancel the rest
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			outcomes[i] = a.simulateOne(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// SimulateAll concatenates the rows of every contract that simulated
// successfully, in input order. Failed contracts are logged and dropped; if
// all fail the result is empty.
func (a *PortfolioAggregator) SimulateAll(ctx context.Context, specs []interfaces.ContractSpec) []interfaces.ScenarioResult {
	var rows []interfaces.ScenarioResult
	failed := 0

	for _, outcome := range a.SimulateEach(ctx, specs) {
		if outcome.Err != nil {
			failed++
			a.logger.WithFields(logrus.Fields{
				"ticker":     outcome.Spec.Ticker,
				"type":       outcome.Spec.OptionType,
				"strike":     outcome.Spec.Strike,
				"expiration": outcome.Spec.Expiration,
			}).WithError(outcome.Err).Warn("Simulation error, contract dropped")
			continue
		}
		rows = append(rows, outcome.Rows...)
	}

	if len(rows) == 0 && len(specs) > 0 {
		a.logger.WithField("contracts", len(specs)).Warn("All contracts failed or returned empty")
	} else {
		a.logger.WithFields(logrus.Fields{
			"contracts": len(specs),
			"failed":    failed,
			"rows":      len(rows),
		}).Info("Portfolio simulated")
	}

	if rows == nil {
		rows = []interfaces.ScenarioResult{}
	}
	return rows
}

func (a *PortfolioAggregator) simulateOne(ctx context.Context, spec interfaces.ContractSpec) ContractOutcome {
	if err := ctx.Err(); err != nil {
		return ContractOutcome{Spec: spec, Err: &SimulationError{Ticker: spec.Ticker, Err: err}}
	}
	rows, err := a.simulator.Simulate(ctx, spec)
	if err == nil && len(rows) == 0 {
		err = &SimulationError{Ticker: spec.Ticker, Err: ErrQuoteNotFound}
	}
	return ContractOutcome{Spec: spec, Rows: rows, Err: err}
}
