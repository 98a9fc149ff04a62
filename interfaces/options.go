package interfaces

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OptionType is the right of an option contract
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// ParseOptionType normalizes "call"/"put" (any case, also "C"/"P")
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return OptionTypeCall, nil
	case "put", "p":
		return OptionTypePut, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// Greeks holds the quoted sensitivities of a contract. Nil means the
// upstream did not report the value.
type Greeks struct {
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
}

// OptionQuote represents one listed option contract with its latest market data
type OptionQuote struct {
	Symbol            string     `json:"symbol"` // OCC symbol (e.g., "AAPL250117C00150000")
	Underlying        string     `json:"underlying"`
	Type              OptionType `json:"type"`
	Strike            float64    `json:"strike"`
	Expiration        time.Time  `json:"expiration"`
	Last              *float64   `json:"last,omitempty"`
	Bid               *float64   `json:"bid,omitempty"`
	Ask               *float64   `json:"ask,omitempty"`
	Volume            *int64     `json:"volume,omitempty"`
	OpenInterest      *int64     `json:"open_interest,omitempty"`
	ImpliedVolatility *float64   `json:"implied_volatility,omitempty"`
	Greeks            Greeks     `json:"greeks"`
}

// ContractQuery filters an option chain. Zero values leave a bound open.
type ContractQuery struct {
	Ticker         string
	Type           OptionType
	StrikeFrom     float64
	StrikeTo       float64
	ExpirationFrom time.Time
	ExpirationTo   time.Time
	Limit          int
}

// MarketDataGateway defines the market data lookups the simulation core needs.
//
// CurrentPrice returns 0 or an error when the underlying price is unavailable.
// FindContracts returns matching contracts in upstream listing order; an
// empty slice means nothing matched.
type MarketDataGateway interface {
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
	FindContracts(ctx context.Context, query ContractQuery) ([]OptionQuote, error)
}
