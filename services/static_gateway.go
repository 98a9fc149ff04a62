package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"stocktimus/interfaces"
	"strings"
	"sync"
)

// StaticFixture is the on-disk form of a StaticGateway
type StaticFixture struct {
	Prices    map[string]float64       `json:"prices"`
	Contracts []interfaces.OptionQuote `json:"contracts"`
}

// StaticGateway serves prices and contracts from memory, in listing order.
// It backs offline CLI runs and tests.
type StaticGateway struct {
	mu        sync.RWMutex
	prices    map[string]float64
	contracts []interfaces.OptionQuote
	failures  map[string]error
	calls     []interfaces.ContractQuery
}

// NewStaticGateway creates an empty static gateway
func NewStaticGateway() *StaticGateway {
	return &StaticGateway{
		prices:   make(map[string]float64),
		failures: make(map[string]error),
	}
}

// LoadStaticGateway reads a JSON fixture file
func LoadStaticGateway(path string) (*StaticGateway, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read market data fixture: %w", err)
	}

	var fixture StaticFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to decode market data fixture: %w", err)
	}

	g := NewStaticGateway()
	for ticker, price := range fixture.Prices {
		g.SetPrice(ticker, price)
	}
	for _, c := range fixture.Contracts {
		g.AddContract(c)
	}
	return g, nil
}

// SetPrice sets the underlying price of a ticker
func (g *StaticGateway) SetPrice(ticker string, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[strings.ToUpper(ticker)] = price
}

// AddContract appends a contract to the listing
func (g *StaticGateway) AddContract(q interfaces.OptionQuote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q.Underlying = strings.ToUpper(q.Underlying)
	q.Expiration = interfaces.TruncateDay(q.Expiration)
	g.contracts = append(g.contracts, q)
}

// FailTicker makes every lookup for the ticker return err
func (g *StaticGateway) FailTicker(ticker string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[strings.ToUpper(ticker)] = err
}

// Queries returns the contract queries received so far
func (g *StaticGateway) Queries() []interfaces.ContractQuery {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]interfaces.ContractQuery(nil), g.calls...)
}

// CurrentPrice returns the configured price, 0 when the ticker is unknown
func (g *StaticGateway) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ticker = strings.ToUpper(ticker)
	if err := g.failures[ticker]; err != nil {
		return 0, err
	}
	return g.prices[ticker], nil
}

// FindContracts filters the listing by the query bounds
func (g *StaticGateway) FindContracts(ctx context.Context, query interfaces.ContractQuery) ([]interfaces.OptionQuote, error) {
	g.mu.Lock()
	g.calls = append(g.calls, query)
	g.mu.Unlock()

	g.mu.RLock()
	defer g.mu.RUnlock()

	ticker := strings.ToUpper(query.Ticker)
	if err := g.failures[ticker]; err != nil {
		return nil, err
	}

	var matched []interfaces.OptionQuote
	for _, c := range g.contracts {
		if c.Underlying != ticker || !matchesQuery(c, query) {
			continue
		}
		matched = append(matched, c)
		if query.Limit > 0 && len(matched) == query.Limit {
			break
		}
	}
	return matched, nil
}
