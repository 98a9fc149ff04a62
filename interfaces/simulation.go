package interfaces

import (
	"bytes"
	"encoding/json"
	"math"
)

// Loose is a scalar input field that tolerates JSON strings, numbers and
// null. It keeps the raw text; services decide the fallback when it does
// not parse.
type Loose string

// UnmarshalJSON accepts "12", 12, 12.5, true and null
func (l *Loose) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Loose(s)
		return nil
	}
	*l = Loose(data)
	return nil
}

// Greek is an optional sensitivity that renders as "NA" when unavailable
type Greek struct {
	Value float64
	Valid bool
}

// NewGreek rounds a quoted greek to 4 places; nil or non-finite is NA
func NewGreek(v *float64) Greek {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Greek{}
	}
	return Greek{Value: math.Round(*v*1e4) / 1e4, Valid: true}
}

func (g Greek) MarshalJSON() ([]byte, error) {
	if !g.Valid {
		return []byte(`"NA"`), nil
	}
	return json.Marshal(g.Value)
}

func (g *Greek) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		// "NA" and any other string
		*g = Greek{}
		return nil
	}
	*g = NewGreek(v)
	return nil
}

// ContractSpec describes one contract to simulate, as supplied by the caller
type ContractSpec struct {
	Label                  string     `json:"label,omitempty"`
	Ticker                 string     `json:"ticker" binding:"required"`
	OptionType             OptionType `json:"option_type" binding:"required"`
	Strike                 Loose      `json:"strike"`
	Expiration             string     `json:"expiration" binding:"required"` // YYYY-MM-DD
	DaysToGain             Loose      `json:"days_to_gain,omitempty"`
	NumberOfContracts      Loose      `json:"number_of_contracts,omitempty"`
	AverageCostPerContract Loose      `json:"average_cost_per_contract,omitempty"`

	// EvaluateToday evaluates at a zero horizon when DaysToGain is empty
	// instead of deriving one from the expiration. Saved contracts set it
	// once their countdown has run out.
	EvaluateToday bool `json:"-"`
}

// ScenarioResult is one simulated (contract, scenario) row. Float fields are
// nil when the value was not finite.
type ScenarioResult struct {
	Ticker                string     `json:"Ticker"`
	OptionType            OptionType `json:"Option Type"`
	Strike                float64    `json:"Strike"`
	Expiration            string     `json:"Expiration"`
	Label                 string     `json:"Label,omitempty"`
	ScenarioLabel         string     `json:"Underlying Scenario % Change"`
	ScenarioPercent       float64    `json:"Scenario Percent"`
	CurrentUnderlying     *float64   `json:"Current Underlying"`
	SimulatedUnderlyingUp *float64   `json:"Simulated Underlying (+)"`
	SimulatedUnderlyingDn *float64   `json:"Simulated Underlying (-)"`
	CurrentPremium        *float64   `json:"Current Premium"`
	SimulatedPremiumUp    *float64   `json:"Simulated Premium (+)"`
	SimulatedPremiumUpPct *float64   `json:"Simulated Premium (+) % Change"`
	SimulatedPremiumDn    *float64   `json:"Simulated Premium (-)"`
	SimulatedPremiumDnPct *float64   `json:"Simulated Premium (-) % Change"`
	DaysToGain            int        `json:"Days to Gain"`
	NumberOfContracts     int        `json:"Number of Contracts"`
	AverageCost           *float64   `json:"Average Cost per Contract"`
	EquityInvested        *float64   `json:"Equity Invested"`
	SimulatedEquityUp     *float64   `json:"Simulated Equity (+)"`
	SimulatedEquityDn     *float64   `json:"Simulated Equity (-)"`
	QuotedStrike          *float64   `json:"Quoted Strike"`
	Bid                   *float64   `json:"Bid"`
	Ask                   *float64   `json:"Ask"`
	Volume                *int64     `json:"Volume"`
	OpenInterest          *int64     `json:"Open Interest"`
	ImpliedVolatility     *float64   `json:"Implied Volatility"` // percent
	Delta                 Greek      `json:"Delta"`
	Theta                 Greek      `json:"Theta"`
	Gamma                 Greek      `json:"Gamma"`
	Vega                  Greek      `json:"Vega"`
	Rho                   Greek      `json:"Rho"`

	// Since-added tracking, set only for saved watchlist contracts
	UnderlyingPctChange *float64 `json:"Underlying % Change,omitempty"`
	PremiumPctChange    *float64 `json:"Premium % Change,omitempty"`
	EquityPctChange     *float64 `json:"Equity % Change,omitempty"`
	DaysRemaining       *int     `json:"Days Remaining,omitempty"`
}

// ErrorRow is the single row reported for a contract that could not be simulated
type ErrorRow struct {
	Error string `json:"Error"`
}

// EmptyResultRow is returned in place of an empty result list
type EmptyResultRow struct {
	Ticker string `json:"Ticker"`
	Note   string `json:"Note"`
}

// ScreenerParams is one screening run over a list of tickers
type ScreenerParams struct {
	Label               string   `json:"label,omitempty"`
	Tickers             []string `json:"tickers"`
	OptionType          string   `json:"option_type"`
	DaysUntilExpiration Loose    `json:"days_until_exp"`
	StrikePct           Loose    `json:"strike_pct"`
	DaysToGain          Loose    `json:"days_to_gain"`
	StockGainPct        Loose    `json:"stock_gain_pct"`
	Allocation          Loose    `json:"allocation,omitempty"`
}

// ScreenerResult is one candidate contract found by the screener
type ScreenerResult struct {
	Ticker              string     `json:"Ticker"`
	OptionType          OptionType `json:"Option Type"`
	Expiration          string     `json:"Expiration"`
	Strike              float64    `json:"Strike"`
	PctOTMITM           *float64   `json:"% OTM/ITM"`
	UnderlyingPrice     *float64   `json:"Underlying Price"`
	SimulatedUnderlying *float64   `json:"Simulated Underlying"`
	CurrentPremium      *float64   `json:"Current Premium"`
	SimulatedPremium    *float64   `json:"Simulated Premium"`
	DaysUntilExpiration int        `json:"Days Until Expiration"`
	DaysToGain          int        `json:"Days to Gain"`
	UnderlyingGainPct   *float64   `json:"Underlying Gain %"`
	PremiumGainPct      *float64   `json:"Premium % Gain"`
	ImpliedVolatility   *float64   `json:"Implied Volatility"` // percent
	Delta               Greek      `json:"Delta"`
	Theta               Greek      `json:"Theta"`
	Gamma               Greek      `json:"Gamma"`
	Vega                Greek      `json:"Vega"`
	Rho                 Greek      `json:"Rho"`
	Bid                 *float64   `json:"Bid"`
	Ask                 *float64   `json:"Ask"`
	LastPremium         *float64   `json:"Last Premium"`
	Volume              *int64     `json:"Volume"`
	OpenInterest        *int64     `json:"Open Interest"`
	AllocatedEquity     *float64   `json:"Allocated Equity,omitempty"`
	SimulatedEquity     *float64   `json:"Simulated Equity,omitempty"`
	RunLabel            string     `json:"Run Label"`
}
