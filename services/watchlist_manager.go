package services

import (
	"context"
	"errors"
	"fmt"
	"stocktimus/interfaces"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoContracts is returned when a group or bulk run resolves to no saved contracts
var ErrNoContracts = errors.New("no valid contracts found")

// Group assignment modes
const (
	AssignAppend  = "append"
	AssignReplace = "replace"
)

// AddContractRequest represents a request to save a contract to the watchlist
type AddContractRequest struct {
	Label                  string   `json:"label"`
	Ticker                 string   `json:"ticker" binding:"required"`
	OptionType             string   `json:"option_type" binding:"required"`
	Strike                 float64  `json:"strike" binding:"required,gt=0"`
	Expiration             string   `json:"expiration" binding:"required"` // YYYY-MM-DD
	InitialDaysToGain      *int     `json:"initial_days_to_gain,omitempty"`
	NumberOfContracts      *int     `json:"number_of_contracts,omitempty"`
	AverageCostPerContract *float64 `json:"average_cost_per_contract,omitempty"`
}

// RefreshSummary reports the outcome of refreshing several contracts
type RefreshSummary struct {
	JobID      string `json:"job_id,omitempty"`
	Total      int    `json:"total_contracts"`
	Successful int    `json:"successful_contracts"`
	Failed     int    `json:"failed_contracts"`
}

// WatchlistManager keeps saved contracts and groups and re-simulates them
// against current market data
type WatchlistManager struct {
	storage    interfaces.StorageService
	simulator  Simulator
	aggregator *PortfolioAggregator
	journal    *RefreshJournal
	multiplier float64
	now        func() time.Time
	logger     *logrus.Logger
	jobs       sync.WaitGroup
}

// NewWatchlistManager creates a new watchlist manager. A nil journal keeps
// refresh jobs in memory.
func NewWatchlistManager(
	storage interfaces.StorageService,
	simulator Simulator,
	aggregator *PortfolioAggregator,
	journal *RefreshJournal,
	config SimulatorConfig,
	logger *logrus.Logger,
) *WatchlistManager {
	if logger == nil {
		logger = newDefaultLogger()
	}
	config = config.withDefaults()
	if journal == nil {
		// Without a directory the journal never touches disk and cannot fail
		journal, _ = NewRefreshJournal("", config.Now, logger)
	}

	return &WatchlistManager{
		storage:    storage,
		simulator:  simulator,
		aggregator: aggregator,
		journal:    journal,
		multiplier: config.ContractMultiplier,
		now:        config.Now,
		logger:     logger,
	}
}

// AddContract simulates the contract once at its initial horizon and saves it
// with that snapshot as both the initial and the current values
func (wm *WatchlistManager) AddContract(ctx context.Context, req *AddContractRequest) (*interfaces.SavedContract, error) {
	wm.logger.WithFields(logrus.Fields{
		"ticker":     req.Ticker,
		"type":       req.OptionType,
		"strike":     req.Strike,
		"expiration": req.Expiration,
	}).Info("Adding contract to watchlist")

	optionType, err := interfaces.ParseOptionType(req.OptionType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	expiration, ok := parseDate(req.Expiration)
	if !ok {
		return nil, fmt.Errorf("%w: invalid expiration %q", ErrInvalidInput, req.Expiration)
	}
	if !(req.Strike > 0) {
		return nil, fmt.Errorf("%w: strike must be positive", ErrInvalidInput)
	}

	now := wm.now()
	daysToGain := DefaultDaysToGain(expiration, now)
	if req.InitialDaysToGain != nil && *req.InitialDaysToGain > 0 {
		daysToGain = *req.InitialDaysToGain
	}
	contracts := 1
	if req.NumberOfContracts != nil && *req.NumberOfContracts > 0 {
		contracts = *req.NumberOfContracts
	}
	var costInput interfaces.Loose
	if req.AverageCostPerContract != nil {
		costInput = interfaces.Loose(strconv.FormatFloat(*req.AverageCostPerContract, 'f', -1, 64))
	}

	contract := &interfaces.SavedContract{
		Label:             req.Label,
		Ticker:            strings.ToUpper(strings.TrimSpace(req.Ticker)),
		OptionType:        optionType,
		Strike:            req.Strike,
		Expiration:        expiration,
		InitialDaysToGain: daysToGain,
		NumberOfContracts: contracts,
		IsActive:          true,
		LastResetDate:     now,
	}

	spec := specForSaved(contract, daysToGain)
	spec.AverageCostPerContract = costInput

	rows, err := wm.simulator.Simulate(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("simulator failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("simulator failed: %w", ErrQuoteNotFound)
	}

	premium := valueOr(rows[0].CurrentPremium, 0)
	underlying := valueOr(rows[0].CurrentUnderlying, 0)
	cost := positiveFloatOr(costInput, premium)
	equity := cost * float64(contracts) * wm.multiplier

	contract.AverageCostPerContract = cost
	contract.InitialCostPerContract = cost
	contract.UnderlyingPriceAtAdd = underlying
	contract.CurrentUnderlyingPrice = underlying
	contract.InitialPremium = premium
	contract.CurrentPremium = premium
	contract.InitialEquity = equity
	contract.CurrentEquity = equity
	contract.LatestSimulation = rows
	contract.LastRefreshDate = now

	if err := wm.storage.SaveContract(contract); err != nil {
		return nil, fmt.Errorf("failed to save contract: %w", err)
	}

	wm.logger.WithFields(logrus.Fields{
		"contract_id":  contract.ID,
		"premium":      premium,
		"underlying":   underlying,
		"days_to_gain": daysToGain,
	}).Info("Contract added to watchlist")
	return contract, nil
}

// GetContract returns a saved contract
func (wm *WatchlistManager) GetContract(id uint) (*interfaces.SavedContract, error) {
	return wm.storage.GetContract(id)
}

// ListContracts returns all saved contracts
func (wm *WatchlistManager) ListContracts() ([]*interfaces.SavedContract, error) {
	return wm.storage.ListContracts()
}

// DeleteContract removes a saved contract
func (wm *WatchlistManager) DeleteContract(id uint) error {
	if err := wm.storage.DeleteContract(id); err != nil {
		return err
	}
	wm.logger.WithField("contract_id", id).Info("Contract removed from watchlist")
	return nil
}

// ResetCountdown restarts the days-to-gain countdown of a contract from today
func (wm *WatchlistManager) ResetCountdown(id uint) (*interfaces.SavedContract, error) {
	contract, err := wm.storage.GetContract(id)
	if err != nil {
		return nil, err
	}

	contract.LastResetDate = wm.now()
	if err := wm.storage.SaveContract(contract); err != nil {
		return nil, fmt.Errorf("failed to save contract: %w", err)
	}

	wm.logger.WithField("contract_id", id).Info("Countdown reset")
	return contract, nil
}

// RefreshContract re-simulates a contract at its remaining horizon and
// updates its current values
func (wm *WatchlistManager) RefreshContract(ctx context.Context, id uint) (*interfaces.SavedContract, error) {
	contract, err := wm.storage.GetContract(id)
	if err != nil {
		return nil, err
	}

	rows, err := wm.simulator.Simulate(ctx, specForSaved(contract, contract.DynamicDaysToGain(wm.now())))
	if err != nil {
		return nil, fmt.Errorf("simulator failed: %w", err)
	}

	wm.applySnapshot(contract, rows)
	if err := wm.storage.SaveContract(contract); err != nil {
		return nil, fmt.Errorf("failed to save contract: %w", err)
	}

	wm.logger.WithFields(logrus.Fields{
		"contract_id": id,
		"premium":     contract.CurrentPremium,
		"underlying":  contract.CurrentUnderlyingPrice,
	}).Info("Contract refreshed")
	return contract, nil
}

// RefreshAll refreshes every active contract and records the run as a job
func (wm *WatchlistManager) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	contracts, err := wm.storage.ListContracts()
	if err != nil {
		return nil, err
	}

	var active []*interfaces.SavedContract
	for _, c := range contracts {
		if c.IsActive {
			active = append(active, c)
		}
	}

	summary := &RefreshSummary{Total: len(active)}
	if len(active) == 0 {
		return summary, nil
	}

	job, err := wm.journal.StartJob(JobTypeRefreshAll, 0, len(active))
	if err != nil {
		wm.logger.WithError(err).Warn("Failed to write refresh journal")
	}
	summary.JobID = job.ID

	for _, outcome := range wm.simulateSaved(ctx, active) {
		wm.recordContract(job.ID, outcome.err)
		if outcome.err != nil {
			summary.Failed++
			continue
		}
		summary.Successful++
	}
	wm.finishJob(job.ID, summary.Successful, summary.Failed)

	wm.logger.WithFields(logrus.Fields{
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	}).Info("Watchlist refreshed")
	return summary, nil
}

// StartGroupRefresh refreshes the contracts of a group in the background,
// one at a time, and returns the job tracking it
func (wm *WatchlistManager) StartGroupRefresh(ctx context.Context, groupID uint) (*RefreshJob, error) {
	group, err := wm.storage.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	contracts, err := wm.storage.GetContracts(group.ContractIDs)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}

	job, err := wm.journal.StartJob(JobTypeGroupRefresh, groupID, len(contracts))
	if err != nil {
		wm.logger.WithError(err).Warn("Failed to write refresh journal")
	}

	wm.jobs.Add(1)
	go func() {
		defer wm.jobs.Done()
		wm.runGroupRefresh(context.WithoutCancel(ctx), job.ID, contracts)
	}()
	return job, nil
}

// WaitForJobs blocks until background refresh jobs have finished
func (wm *WatchlistManager) WaitForJobs() {
	wm.jobs.Wait()
}

func (wm *WatchlistManager) runGroupRefresh(ctx context.Context, jobID string, contracts []*interfaces.SavedContract) {
	successful, failed := 0, 0
	for _, contract := range contracts {
		outcome := wm.simulateSaved(ctx, []*interfaces.SavedContract{contract})[0]
		wm.recordContract(jobID, outcome.err)
		if outcome.err != nil {
			failed++
			continue
		}
		successful++
	}
	wm.finishJob(jobID, successful, failed)
}

func (wm *WatchlistManager) recordContract(jobID string, err error) {
	if jerr := wm.journal.RecordContract(jobID, err); jerr != nil {
		wm.logger.WithError(jerr).WithField("job_id", jobID).Warn("Failed to write refresh journal")
	}
}

// finishJob fails the job only when no contract could be refreshed
func (wm *WatchlistManager) finishJob(jobID string, successful, failed int) {
	var err error
	if successful == 0 && failed > 0 {
		err = fmt.Errorf("all %d contracts failed to refresh", failed)
	}
	if jerr := wm.journal.FinishJob(jobID, err); jerr != nil {
		wm.logger.WithError(jerr).WithField("job_id", jobID).Warn("Failed to write refresh journal")
	}
}

// MonitorContracts refreshes the watchlist on every tick until ctx is done
func (wm *WatchlistManager) MonitorContracts(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wm.logger.WithField("interval", interval).Info("Watchlist monitoring started")

	for {
		select {
		case <-ctx.Done():
			wm.logger.Info("Watchlist monitoring stopped")
			return
		case <-ticker.C:
			if _, err := wm.RefreshAll(ctx); err != nil {
				wm.logger.WithError(err).Error("Failed to refresh watchlist")
			}
		}
	}
}

// CreateGroup creates an empty named group
func (wm *WatchlistManager) CreateGroup(name string) (*interfaces.WatchlistGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", ErrInvalidInput)
	}

	group := &interfaces.WatchlistGroup{Name: name}
	if err := wm.storage.SaveGroup(group); err != nil {
		return nil, err
	}
	group.ContractIDs = []uint{}
	return group, nil
}

// RenameGroup changes the name of a group
func (wm *WatchlistManager) RenameGroup(id uint, name string) (*interfaces.WatchlistGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", ErrInvalidInput)
	}

	group, err := wm.storage.GetGroup(id)
	if err != nil {
		return nil, err
	}
	group.Name = name
	if err := wm.storage.SaveGroup(group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup returns a group with its contract IDs
func (wm *WatchlistManager) GetGroup(id uint) (*interfaces.WatchlistGroup, error) {
	return wm.storage.GetGroup(id)
}

// ListGroups returns all groups
func (wm *WatchlistManager) ListGroups() ([]*interfaces.WatchlistGroup, error) {
	return wm.storage.ListGroups()
}

// DeleteGroup removes a group, leaving its contracts saved
func (wm *WatchlistManager) DeleteGroup(id uint) error {
	return wm.storage.DeleteGroup(id)
}

// AssignContracts adds contracts to a group or replaces its membership.
// It returns the IDs that were assigned.
func (wm *WatchlistManager) AssignContracts(groupID uint, contractIDs []uint, mode string) ([]uint, error) {
	if mode == "" {
		mode = AssignAppend
	}
	if mode != AssignAppend && mode != AssignReplace {
		return nil, fmt.Errorf("%w: invalid mode %q", ErrInvalidInput, mode)
	}

	if _, err := wm.storage.GetGroup(groupID); err != nil {
		return nil, err
	}

	contracts, err := wm.storage.GetContracts(contractIDs)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}

	ids := make([]uint, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	if err := wm.storage.AssignContracts(groupID, ids, mode == AssignReplace); err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveContractFromGroup detaches a contract from a group
func (wm *WatchlistManager) RemoveContractFromGroup(groupID, contractID uint) error {
	if _, err := wm.storage.GetGroup(groupID); err != nil {
		return err
	}
	if _, err := wm.storage.GetContract(contractID); err != nil {
		return err
	}
	return wm.storage.RemoveContractFromGroup(groupID, contractID)
}

// SimulateGroup simulates every contract of a group at its remaining horizon
func (wm *WatchlistManager) SimulateGroup(ctx context.Context, groupID uint) ([]interfaces.ScenarioResult, error) {
	group, err := wm.storage.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	return wm.SimulateBulk(ctx, group.ContractIDs)
}

// SimulateBulk simulates the given saved contracts at their remaining
// horizons, updates their current values and annotates every row with the
// change since the contract was added. Contracts that fail are dropped.
func (wm *WatchlistManager) SimulateBulk(ctx context.Context, contractIDs []uint) ([]interfaces.ScenarioResult, error) {
	contracts, err := wm.storage.GetContracts(contractIDs)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}

	rows := []interfaces.ScenarioResult{}
	for _, outcome := range wm.simulateSaved(ctx, contracts) {
		if outcome.err != nil {
			continue
		}
		rows = append(rows, outcome.rows...)
	}
	return rows, nil
}

type savedOutcome struct {
	contract *interfaces.SavedContract
	rows     []interfaces.ScenarioResult
	err      error
}

// simulateSaved runs the contracts through the aggregator, persists the new
// snapshots and returns the annotated rows per contract
func (wm *WatchlistManager) simulateSaved(ctx context.Context, contracts []*interfaces.SavedContract) []savedOutcome {
	now := wm.now()
	specs := make([]interfaces.ContractSpec, len(contracts))
	for i, c := range contracts {
		specs[i] = specForSaved(c, c.DynamicDaysToGain(now))
	}

	outcomes := wm.aggregator.SimulateEach(ctx, specs)
	results := make([]savedOutcome, len(contracts))
	for i, outcome := range outcomes {
		contract := contracts[i]
		if outcome.Err != nil {
			wm.logger.WithFields(logrus.Fields{
				"contract_id": contract.ID,
				"ticker":      contract.Ticker,
			}).WithError(outcome.Err).Warn("Simulation error, contract dropped")
			results[i] = savedOutcome{contract: contract, err: outcome.Err}
			continue
		}

		wm.applySnapshot(contract, outcome.Rows)
		if err := wm.storage.SaveContract(contract); err != nil {
			wm.logger.WithError(err).WithField("contract_id", contract.ID).Warn("Failed to save contract snapshot")
		}

		results[i] = savedOutcome{contract: contract, rows: wm.annotate(contract, outcome.Rows, now)}
	}
	return results
}

// applySnapshot copies current premium and underlying from a simulation
func (wm *WatchlistManager) applySnapshot(contract *interfaces.SavedContract, rows []interfaces.ScenarioResult) {
	if len(rows) > 0 {
		if p := valueOr(rows[0].CurrentPremium, 0); p != 0 {
			contract.CurrentPremium = p
		}
		if u := valueOr(rows[0].CurrentUnderlying, 0); u != 0 {
			contract.CurrentUnderlyingPrice = u
		}
	}
	if contract.CurrentPremium != 0 {
		contract.CurrentEquity = contract.CurrentPremium * float64(max(contract.NumberOfContracts, 1)) * wm.multiplier
	}
	contract.LatestSimulation = rows
	contract.LastRefreshDate = wm.now()
}

func (wm *WatchlistManager) annotate(contract *interfaces.SavedContract, rows []interfaces.ScenarioResult, now time.Time) []interfaces.ScenarioResult {
	contracts := max(contract.NumberOfContracts, 1)
	underlyingChange := round2(contract.UnderlyingPercentChange())
	premiumChange := round2(contract.PremiumPercentChange())
	equityChange := round2(contract.EquityPercentChange())
	remaining := contract.DynamicDaysToGain(now)

	annotated := make([]interfaces.ScenarioResult, len(rows))
	for i, row := range rows {
		cost := contract.AverageCostPerContract
		if !(cost > 0) {
			cost = valueOr(row.CurrentPremium, 0)
		}

		row.Label = contract.Label
		row.NumberOfContracts = contracts
		row.AverageCost = round2(cost)
		row.EquityInvested = round2(cost * float64(contracts) * wm.multiplier)
		row.UnderlyingPctChange = underlyingChange
		row.PremiumPctChange = premiumChange
		row.EquityPctChange = equityChange
		row.DaysRemaining = &remaining
		annotated[i] = row
	}
	return annotated
}

func specForSaved(c *interfaces.SavedContract, daysToGain int) interfaces.ContractSpec {
	spec := interfaces.ContractSpec{
		Label:             c.Label,
		Ticker:            c.Ticker,
		OptionType:        c.OptionType,
		Strike:            interfaces.Loose(strconv.FormatFloat(c.Strike, 'f', -1, 64)),
		Expiration:        c.Expiration.UTC().Format(dateLayout),
		NumberOfContracts: interfaces.Loose(strconv.Itoa(max(c.NumberOfContracts, 1))),
	}
	if daysToGain > 0 {
		spec.DaysToGain = interfaces.Loose(strconv.Itoa(daysToGain))
	} else {
		spec.EvaluateToday = true
	}
	if c.AverageCostPerContract > 0 {
		spec.AverageCostPerContract = interfaces.Loose(strconv.FormatFloat(c.AverageCostPerContract, 'f', -1, 64))
	}
	return spec
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
