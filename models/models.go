package models

import (
	"time"

	"gorm.io/gorm"
)

// DBSavedContract represents a watchlist contract in the database
type DBSavedContract struct {
	gorm.Model
	Label      string
	Ticker     string    `gorm:"index:idx_contract_identity"`
	OptionType string    `gorm:"index:idx_contract_identity"`
	Strike     float64   `gorm:"index:idx_contract_identity"`
	Expiration time.Time `gorm:"index:idx_contract_identity"`

	InitialDaysToGain      int
	NumberOfContracts      int `gorm:"default:1"`
	AverageCostPerContract float64
	InitialCostPerContract float64

	// Snapshot at add time vs latest refresh
	UnderlyingPriceAtAdd   float64
	CurrentUnderlyingPrice float64
	InitialPremium         float64
	CurrentPremium         float64
	InitialEquity          float64
	CurrentEquity          float64

	LatestSimulationResult string // JSON array of scenario rows
	IsActive               bool   `gorm:"default:true"`
	LastResetDate          time.Time
	LastRefreshDate        time.Time

	Groups []*DBWatchlistGroup `gorm:"many2many:watchlist_group_contracts;"`
}

// DBWatchlistGroup represents a named group of saved contracts
type DBWatchlistGroup struct {
	gorm.Model
	Name      string             `gorm:"index"`
	Contracts []*DBSavedContract `gorm:"many2many:watchlist_group_contracts;"`
}

// DBSavedScreenerParameter represents a saved screener parameter set
type DBSavedScreenerParameter struct {
	gorm.Model
	Label               string
	Tickers             string // JSON array of symbols
	OptionType          string
	DaysUntilExpiration int
	StrikePct           float64
	DaysToGain          int
	StockGainPct        float64
	Allocation          float64
}

// TableName overrides for cleaner table names
func (DBSavedContract) TableName() string {
	return "saved_contracts"
}

func (DBWatchlistGroup) TableName() string {
	return "watchlist_groups"
}

func (DBSavedScreenerParameter) TableName() string {
	return "saved_screener_parameters"
}
