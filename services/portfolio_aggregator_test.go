package services

import (
	"context"
	"errors"
	"fmt"
	"stocktimus/interfaces"
	"sync/atomic"
	"testing"
	"time"
)

// stubSimulator returns one row per spec, tagged with the strike, after a
// delay that shrinks with the input position
type stubSimulator struct {
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubSimulator) Simulate(ctx context.Context, spec interfaces.ContractSpec) ([]interfaces.ScenarioResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	strike, _ := parsePositiveFloat(spec.Strike)
	time.Sleep(time.Duration(200-strike) * 50 * time.Microsecond)

	if s.fail[spec.Ticker] {
		return nil, &SimulationError{Ticker: spec.Ticker, Err: ErrQuoteNotFound}
	}
	if spec.Ticker == "EMPTY" {
		return nil, nil
	}
	return []interfaces.ScenarioResult{{Ticker: spec.Ticker, Strike: strike}}, nil
}

func specsForStrikes(n int) []interfaces.ContractSpec {
	specs := make([]interfaces.ContractSpec, n)
	for i := range specs {
		specs[i] = interfaces.ContractSpec{
			Ticker:     "AAPL",
			OptionType: interfaces.OptionTypeCall,
			Strike:     interfaces.Loose(fmt.Sprint(100 + i)),
			Expiration: "2025-04-01",
		}
	}
	return specs
}

func TestSimulateEachKeepsInputOrder(t *testing.T) {
	for _, concurrency := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			sim := &stubSimulator{}
			agg := NewPortfolioAggregator(sim, concurrency, testLogger())

			specs := specsForStrikes(20)
			outcomes := agg.SimulateEach(context.Background(), specs)
			if len(outcomes) != len(specs) {
				t.Fatalf("got %d outcomes, want %d", len(outcomes), len(specs))
			}
			for i, o := range outcomes {
				if o.Err != nil {
					t.Fatalf("outcome %d: %v", i, o.Err)
				}
				if want := float64(100 + i); o.Rows[0].Strike != want {
					t.Errorf("outcome %d: strike %v, want %v", i, o.Rows[0].Strike, want)
				}
			}
			if peak := int(sim.peak.Load()); peak > concurrency {
				t.Errorf("peak concurrency %d exceeds limit %d", peak, concurrency)
			}
		})
	}
}

func TestSimulateAllDropsFailures(t *testing.T) {
	agg := NewPortfolioAggregator(newTestSimulator(aaplGateway()), 3, testLogger())

	good := aaplSpec()
	badTicker := aaplSpec()
	badTicker.Ticker = "ZZZZ"
	badStrike := aaplSpec()
	badStrike.Strike = "abc"

	rows := agg.SimulateAll(context.Background(), []interfaces.ContractSpec{good, badTicker, good, badStrike})
	if want := 2 * len(DefaultScenarios); len(rows) != want {
		t.Fatalf("got %d rows, want %d", len(rows), want)
	}
	for _, row := range rows {
		if row.Ticker != "AAPL" {
			t.Errorf("unexpected row for %s", row.Ticker)
		}
	}
}

func TestSimulateAllEmpty(t *testing.T) {
	agg := NewPortfolioAggregator(&stubSimulator{fail: map[string]bool{"AAPL": true}}, 1, testLogger())

	rows := agg.SimulateAll(context.Background(), specsForStrikes(3))
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", rows)
	}

	if rows := agg.SimulateAll(context.Background(), nil); rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil slice for no input, got %#v", rows)
	}
}

func TestSimulateEachEmptyRowsIsNotFound(t *testing.T) {
	agg := NewPortfolioAggregator(&stubSimulator{}, 1, testLogger())

	outcomes := agg.SimulateEach(context.Background(), []interfaces.ContractSpec{{Ticker: "EMPTY", Strike: "100"}})
	if !errors.Is(outcomes[0].Err, ErrQuoteNotFound) {
		t.Errorf("expected ErrQuoteNotFound, got %v", outcomes[0].Err)
	}
}

func TestSimulateEachCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewPortfolioAggregator(&stubSimulator{}, 2, testLogger())
	for i, o := range agg.SimulateEach(ctx, specsForStrikes(3)) {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %d: expected context.Canceled, got %v", i, o.Err)
		}
	}
}
