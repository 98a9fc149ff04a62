package interfaces

import (
	"errors"
	"time"
)

// ErrNotFound is returned by a StorageService when a record does not exist
var ErrNotFound = errors.New("record not found")

// StorageService defines the interface for watchlist persistence
type StorageService interface {
	SaveContract(contract *SavedContract) error
	GetContract(id uint) (*SavedContract, error)
	GetContracts(ids []uint) ([]*SavedContract, error)
	ListContracts() ([]*SavedContract, error)
	DeleteContract(id uint) error

	SaveGroup(group *WatchlistGroup) error
	GetGroup(id uint) (*WatchlistGroup, error)
	ListGroups() ([]*WatchlistGroup, error)
	DeleteGroup(id uint) error
	AssignContracts(groupID uint, contractIDs []uint, replace bool) error
	RemoveContractFromGroup(groupID, contractID uint) error

	SaveScreenerParams(params *SavedScreenerParams) error
	ListScreenerParams() ([]*SavedScreenerParams, error)
	DeleteScreenerParams(id uint) error
}

// SavedContract is a watchlist contract with the snapshot taken when it was
// added and the latest refreshed values
type SavedContract struct {
	ID                     uint             `json:"id"`
	Label                  string           `json:"label"`
	Ticker                 string           `json:"ticker"`
	OptionType             OptionType       `json:"option_type"`
	Strike                 float64          `json:"strike"`
	Expiration             time.Time        `json:"expiration"`
	InitialDaysToGain      int              `json:"initial_days_to_gain"`
	NumberOfContracts      int              `json:"number_of_contracts"`
	AverageCostPerContract float64          `json:"average_cost_per_contract"`
	InitialCostPerContract float64          `json:"initial_cost_per_contract"`
	UnderlyingPriceAtAdd   float64          `json:"underlying_price_at_add"`
	CurrentUnderlyingPrice float64          `json:"current_underlying_price"`
	InitialPremium         float64          `json:"initial_premium"`
	CurrentPremium         float64          `json:"current_premium"`
	InitialEquity          float64          `json:"initial_equity"`
	CurrentEquity          float64          `json:"current_equity"`
	LatestSimulation       []ScenarioResult `json:"latest_simulation_result,omitempty"`
	IsActive               bool             `json:"is_active"`
	LastResetDate          time.Time        `json:"last_reset_date"`
	LastRefreshDate        time.Time        `json:"last_refresh_date"`
	CreatedAt              time.Time        `json:"created_at"`
}

// WatchlistGroup is a named set of saved contracts
type WatchlistGroup struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ContractIDs []uint    `json:"contract_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// SavedScreenerParams is a named screener parameter set kept for reuse
type SavedScreenerParams struct {
	ID                  uint       `json:"id"`
	Label               string     `json:"label"`
	Tickers             []string   `json:"tickers"`
	OptionType          OptionType `json:"option_type"`
	DaysUntilExpiration int        `json:"days_until_exp"`
	StrikePct           float64    `json:"strike_pct"`
	DaysToGain          int        `json:"days_to_gain"`
	StockGainPct        float64    `json:"stock_gain_pct"`
	Allocation          float64    `json:"allocation"`
	CreatedAt           time.Time  `json:"created_at"`
}

// DynamicDaysToGain counts the initial horizon down from the last reset
func (c *SavedContract) DynamicDaysToGain(now time.Time) int {
	if c.InitialDaysToGain <= 0 {
		return 0
	}
	elapsed := int(TruncateDay(now).Sub(TruncateDay(c.LastResetDate)).Hours() / 24)
	return max(0, c.InitialDaysToGain-elapsed)
}

// UnderlyingPercentChange is the underlying move since the contract was added
func (c *SavedContract) UnderlyingPercentChange() float64 {
	return PercentChange(c.UnderlyingPriceAtAdd, c.CurrentUnderlyingPrice)
}

// PremiumPercentChange is the premium move since the contract was added
func (c *SavedContract) PremiumPercentChange() float64 {
	return PercentChange(c.InitialPremium, c.CurrentPremium)
}

// EquityPercentChange is the equity move since the contract was added
func (c *SavedContract) EquityPercentChange() float64 {
	return PercentChange(c.InitialEquity, c.CurrentEquity)
}

// PercentChange is the move from one value to another in percent, 0 when
// the starting value is 0
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// TruncateDay returns midnight UTC of the day t falls on
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
