package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"stocktimus/interfaces"
	"stocktimus/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LocalStorage implements the StorageService interface using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string, log *logrus.Logger) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DBSavedContract{},
		&models.DBWatchlistGroup{},
		&models.DBSavedScreenerParameter{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if log == nil {
		log = logrus.New()
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &LocalStorage{
		db:     db,
		logger: log,
	}, nil
}

// SaveContract inserts or updates a saved contract and sets its ID
func (s *LocalStorage) SaveContract(contract *interfaces.SavedContract) error {
	dbContract, err := contractToDB(contract)
	if err != nil {
		return err
	}

	result := s.db.Save(dbContract)
	if result.Error != nil {
		return fmt.Errorf("failed to save contract: %w", result.Error)
	}

	contract.ID = dbContract.ID
	contract.CreatedAt = dbContract.CreatedAt
	return nil
}

// GetContract retrieves a saved contract by ID
func (s *LocalStorage) GetContract(id uint) (*interfaces.SavedContract, error) {
	var dbContract models.DBSavedContract

	result := s.db.First(&dbContract, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get contract %d: %w", id, notFound(result.Error))
	}

	return dbToContract(&dbContract), nil
}

// GetContracts retrieves saved contracts by ID, ordered by creation
func (s *LocalStorage) GetContracts(ids []uint) ([]*interfaces.SavedContract, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var dbContracts []*models.DBSavedContract
	result := s.db.Where("id IN ?", ids).Order("created_at ASC").Find(&dbContracts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get contracts: %w", result.Error)
	}

	return dbToContracts(dbContracts), nil
}

// ListContracts retrieves all saved contracts, newest first
func (s *LocalStorage) ListContracts() ([]*interfaces.SavedContract, error) {
	var dbContracts []*models.DBSavedContract

	result := s.db.Order("created_at DESC").Find(&dbContracts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", result.Error)
	}

	return dbToContracts(dbContracts), nil
}

// DeleteContract deletes a saved contract and its group memberships
func (s *LocalStorage) DeleteContract(id uint) error {
	contract := &models.DBSavedContract{Model: gorm.Model{ID: id}}
	if err := s.db.Model(contract).Association("Groups").Clear(); err != nil {
		return fmt.Errorf("failed to detach contract from groups: %w", err)
	}

	result := s.db.Delete(&models.DBSavedContract{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete contract: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete contract %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

// SaveGroup inserts or renames a group. Membership is managed separately.
func (s *LocalStorage) SaveGroup(group *interfaces.WatchlistGroup) error {
	dbGroup := &models.DBWatchlistGroup{
		Model: gorm.Model{ID: group.ID, CreatedAt: group.CreatedAt},
		Name:  group.Name,
	}

	result := s.db.Omit("Contracts").Save(dbGroup)
	if result.Error != nil {
		return fmt.Errorf("failed to save group: %w", result.Error)
	}

	group.ID = dbGroup.ID
	group.CreatedAt = dbGroup.CreatedAt
	return nil
}

// GetGroup retrieves a group with its contract IDs
func (s *LocalStorage) GetGroup(id uint) (*interfaces.WatchlistGroup, error) {
	var dbGroup models.DBWatchlistGroup

	result := s.db.Preload("Contracts").First(&dbGroup, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, notFound(result.Error))
	}

	return dbToGroup(&dbGroup), nil
}

// ListGroups retrieves all groups with their contract IDs
func (s *LocalStorage) ListGroups() ([]*interfaces.WatchlistGroup, error) {
	var dbGroups []*models.DBWatchlistGroup

	result := s.db.Preload("Contracts").Order("created_at ASC").Find(&dbGroups)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list groups: %w", result.Error)
	}

	groups := make([]*interfaces.WatchlistGroup, len(dbGroups))
	for i, dbGroup := range dbGroups {
		groups[i] = dbToGroup(dbGroup)
	}
	return groups, nil
}

// DeleteGroup deletes a group; its contracts are kept
func (s *LocalStorage) DeleteGroup(id uint) error {
	group := &models.DBWatchlistGroup{Model: gorm.Model{ID: id}}
	if err := s.db.Model(group).Association("Contracts").Clear(); err != nil {
		return fmt.Errorf("failed to clear group contracts: %w", err)
	}

	result := s.db.Delete(&models.DBWatchlistGroup{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete group: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete group %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

// AssignContracts appends contracts to a group, or replaces its membership
func (s *LocalStorage) AssignContracts(groupID uint, contractIDs []uint, replace bool) error {
	var group models.DBWatchlistGroup
	if err := s.db.First(&group, groupID).Error; err != nil {
		return fmt.Errorf("failed to get group %d: %w", groupID, notFound(err))
	}

	var contracts []*models.DBSavedContract
	if len(contractIDs) > 0 {
		if err := s.db.Where("id IN ?", contractIDs).Find(&contracts).Error; err != nil {
			return fmt.Errorf("failed to get contracts: %w", err)
		}
	}

	association := s.db.Model(&group).Association("Contracts")
	var err error
	if replace {
		err = association.Replace(contracts)
	} else if len(contracts) > 0 {
		err = association.Append(contracts)
	}
	if err != nil {
		return fmt.Errorf("failed to assign contracts: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"group_id":  groupID,
		"contracts": len(contracts),
		"replace":   replace,
	}).Info("Group membership updated")
	return nil
}

// RemoveContractFromGroup detaches one contract from a group
func (s *LocalStorage) RemoveContractFromGroup(groupID, contractID uint) error {
	group := &models.DBWatchlistGroup{Model: gorm.Model{ID: groupID}}
	contract := &models.DBSavedContract{Model: gorm.Model{ID: contractID}}

	if err := s.db.Model(group).Association("Contracts").Delete(contract); err != nil {
		return fmt.Errorf("failed to remove contract from group: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveScreenerParams inserts a screener parameter set and sets its ID
func (s *LocalStorage) SaveScreenerParams(params *interfaces.SavedScreenerParams) error {
	tickers, err := json.Marshal(params.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode tickers: %w", err)
	}

	dbParams := &models.DBSavedScreenerParameter{
		Model:               gorm.Model{ID: params.ID, CreatedAt: params.CreatedAt},
		Label:               params.Label,
		Tickers:             string(tickers),
		OptionType:          string(params.OptionType),
		DaysUntilExpiration: params.DaysUntilExpiration,
		StrikePct:           params.StrikePct,
		DaysToGain:          params.DaysToGain,
		StockGainPct:        params.StockGainPct,
		Allocation:          params.Allocation,
	}

	result := s.db.Save(dbParams)
	if result.Error != nil {
		return fmt.Errorf("failed to save screener parameters: %w", result.Error)
	}

	params.ID = dbParams.ID
	params.CreatedAt = dbParams.CreatedAt
	return nil
}

// ListScreenerParams retrieves all saved screener parameter sets, newest first
func (s *LocalStorage) ListScreenerParams() ([]*interfaces.SavedScreenerParams, error) {
	var dbParams []*models.DBSavedScreenerParameter

	result := s.db.Order("created_at DESC").Order("id DESC").Find(&dbParams)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list screener parameters: %w", result.Error)
	}

	params := make([]*interfaces.SavedScreenerParams, len(dbParams))
	for i, d := range dbParams {
		params[i] = dbToScreenerParams(d)
	}
	return params, nil
}

// DeleteScreenerParams deletes a saved screener parameter set
func (s *LocalStorage) DeleteScreenerParams(id uint) error {
	result := s.db.Delete(&models.DBSavedScreenerParameter{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete screener parameters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete screener parameters %d: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

// notFound maps gorm's missing-record error onto the storage sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return interfaces.ErrNotFound
	}
	return err
}

func contractToDB(c *interfaces.SavedContract) (*models.DBSavedContract, error) {
	latest := ""
	if len(c.LatestSimulation) > 0 {
		raw, err := json.Marshal(c.LatestSimulation)
		if err != nil {
			return nil, fmt.Errorf("failed to encode simulation result: %w", err)
		}
		latest = string(raw)
	}

	return &models.DBSavedContract{
		Model:                  gorm.Model{ID: c.ID, CreatedAt: c.CreatedAt},
		Label:                  c.Label,
		Ticker:                 c.Ticker,
		OptionType:             string(c.OptionType),
		Strike:                 c.Strike,
		Expiration:             c.Expiration,
		InitialDaysToGain:      c.InitialDaysToGain,
		NumberOfContracts:      c.NumberOfContracts,
		AverageCostPerContract: c.AverageCostPerContract,
		InitialCostPerContract: c.InitialCostPerContract,
		UnderlyingPriceAtAdd:   c.UnderlyingPriceAtAdd,
		CurrentUnderlyingPrice: c.CurrentUnderlyingPrice,
		InitialPremium:         c.InitialPremium,
		CurrentPremium:         c.CurrentPremium,
		InitialEquity:          c.InitialEquity,
		CurrentEquity:          c.CurrentEquity,
		LatestSimulationResult: latest,
		IsActive:               c.IsActive,
		LastResetDate:          c.LastResetDate,
		LastRefreshDate:        c.LastRefreshDate,
	}, nil
}

func dbToContract(d *models.DBSavedContract) *interfaces.SavedContract {
	c := &interfaces.SavedContract{
		ID:                     d.ID,
		Label:                  d.Label,
		Ticker:                 d.Ticker,
		OptionType:             interfaces.OptionType(d.OptionType),
		Strike:                 d.Strike,
		Expiration:             d.Expiration,
		InitialDaysToGain:      d.InitialDaysToGain,
		NumberOfContracts:      d.NumberOfContracts,
		AverageCostPerContract: d.AverageCostPerContract,
		InitialCostPerContract: d.InitialCostPerContract,
		UnderlyingPriceAtAdd:   d.UnderlyingPriceAtAdd,
		CurrentUnderlyingPrice: d.CurrentUnderlyingPrice,
		InitialPremium:         d.InitialPremium,
		CurrentPremium:         d.CurrentPremium,
		InitialEquity:          d.InitialEquity,
		CurrentEquity:          d.CurrentEquity,
		IsActive:               d.IsActive,
		LastResetDate:          d.LastResetDate,
		LastRefreshDate:        d.LastRefreshDate,
		CreatedAt:              d.CreatedAt,
	}
	if d.LatestSimulationResult != "" {
		// A corrupt snapshot only loses the cached rows
		_ = json.Unmarshal([]byte(d.LatestSimulationResult), &c.LatestSimulation)
	}
	return c
}

func dbToContracts(dbContracts []*models.DBSavedContract) []*interfaces.SavedContract {
	contracts := make([]*interfaces.SavedContract, len(dbContracts))
	for i, d := range dbContracts {
		contracts[i] = dbToContract(d)
	}
	return contracts
}

func dbToGroup(d *models.DBWatchlistGroup) *interfaces.WatchlistGroup {
	ids := make([]uint, 0, len(d.Contracts))
	for _, c := range d.Contracts {
		ids = append(ids, c.ID)
	}
	return &interfaces.WatchlistGroup{
		ID:          d.ID,
		Name:        d.Name,
		ContractIDs: ids,
		CreatedAt:   d.CreatedAt,
	}
}

func dbToScreenerParams(d *models.DBSavedScreenerParameter) *interfaces.SavedScreenerParams {
	p := &interfaces.SavedScreenerParams{
		ID:                  d.ID,
		Label:               d.Label,
		Tickers:             []string{},
		OptionType:          interfaces.OptionType(d.OptionType),
		DaysUntilExpiration: d.DaysUntilExpiration,
		StrikePct:           d.StrikePct,
		DaysToGain:          d.DaysToGain,
		StockGainPct:        d.StockGainPct,
		Allocation:          d.Allocation,
		CreatedAt:           d.CreatedAt,
	}
	if d.Tickers != "" {
		_ = json.Unmarshal([]byte(d.Tickers), &p.Tickers)
	}
	return p
}
