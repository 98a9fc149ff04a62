package services

import (
	"context"
	"fmt"
	"slices"
	"stocktimus/interfaces"
	"strings"

	"github.com/sirupsen/logrus"
)

// OptionChain lists the unexpired expirations and strikes listed for a ticker
type OptionChain struct {
	Ticker       string    `json:"ticker"`
	Expirations  []string  `json:"expirations"`
	Strikes      []float64 `json:"strikes"`
	CurrentPrice *float64  `json:"currentPrice"`
}

// OptionChain collects the distinct expirations and strikes of a ticker's
// listed contracts, both ascending. A missing underlying price leaves
// CurrentPrice nil; a failed chain lookup is returned as an error.
func (s *ScreenerAnalyzer) OptionChain(ctx context.Context, ticker string) (*OptionChain, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker required", ErrInvalidInput)
	}

	quotes, err := s.gateway.FindContracts(ctx, interfaces.ContractQuery{
		Ticker:         ticker,
		ExpirationFrom: interfaces.TruncateDay(s.simulator.Now()),
		Limit:          s.config.ChainLimit,
	})
	if err != nil {
		return nil, err
	}

	chain := &OptionChain{
		Ticker:      ticker,
		Expirations: make([]string, 0, len(quotes)),
		Strikes:     make([]float64, 0, len(quotes)),
	}
	for _, q := range quotes {
		if !q.Expiration.IsZero() {
			chain.Expirations = append(chain.Expirations, q.Expiration.UTC().Format(dateLayout))
		}
		if q.Strike > 0 && isFinite(q.Strike) {
			chain.Strikes = append(chain.Strikes, q.Strike)
		}
	}
	slices.Sort(chain.Expirations)
	chain.Expirations = slices.Compact(chain.Expirations)
	slices.Sort(chain.Strikes)
	chain.Strikes = slices.Compact(chain.Strikes)

	price, err := s.gateway.CurrentPrice(ctx, ticker)
	switch {
	case err != nil:
		s.logger.WithField("ticker", ticker).WithError(err).Warn("Option chain without underlying price")
	case price > 0 && isFinite(price):
		chain.CurrentPrice = round2(price)
	}

	s.logger.WithFields(logrus.Fields{
		"ticker":      ticker,
		"expirations": len(chain.Expirations),
		"strikes":     len(chain.Strikes),
	}).Debug("Option chain collected")
	return chain, nil
}
