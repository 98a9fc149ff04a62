package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"stocktimus/interfaces"
	"stocktimus/services"
	"strconv"

	"github.com/gin-gonic/gin"
)

// WatchlistController handles saved contracts and watchlist groups
type WatchlistController struct {
	manager *services.WatchlistManager
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(manager *services.WatchlistManager) *WatchlistController {
	return &WatchlistController{
		manager: manager,
	}
}

// GroupRequest represents a group create or rename request
type GroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// AssignRequest represents a group assignment request
type AssignRequest struct {
	ContractIDs []uint `json:"contract_ids"`
	Mode        string `json:"mode"` // "append" or "replace"
}

// BulkSimulateRequest represents a bulk simulation request
type BulkSimulateRequest struct {
	ContractIDs []uint `json:"contract_ids"`
}

// HandleAddContract saves a contract to the watchlist
// POST /api/v1/contracts
func (wc *WatchlistController) HandleAddContract(c *gin.Context) {
	var req services.AddContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	contract, err := wc.manager.AddContract(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to add contract", err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// HandleListContracts lists saved contracts
// GET /api/v1/contracts
func (wc *WatchlistController) HandleListContracts(c *gin.Context) {
	contracts, err := wc.manager.ListContracts()
	if err != nil {
		respondError(c, "Failed to list contracts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(contracts),
		"contracts": contracts,
	})
}

// HandleGetContract retrieves a saved contract
// GET /api/v1/contracts/:id
func (wc *WatchlistController) HandleGetContract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	contract, err := wc.manager.GetContract(id)
	if err != nil {
		respondError(c, "Contract not found", err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// HandleDeleteContract removes a saved contract
// DELETE /api/v1/contracts/:id
func (wc *WatchlistController) HandleDeleteContract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := wc.manager.DeleteContract(id); err != nil {
		respondError(c, "Failed to delete contract", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted successfully."})
}

// HandleResetCountdown restarts the days-to-gain countdown
// PATCH /api/v1/contracts/:id/reset
func (wc *WatchlistController) HandleResetCountdown(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	contract, err := wc.manager.ResetCountdown(id)
	if err != nil {
		respondError(c, "Failed to reset countdown", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Countdown reset successfully.",
		"contract": contract,
	})
}

// HandleRefreshContract re-simulates a saved contract
// PATCH /api/v1/contracts/:id/refresh
func (wc *WatchlistController) HandleRefreshContract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	contract, err := wc.manager.RefreshContract(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to refresh contract", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Contract refreshed successfully.",
		"contract": contract,
	})
}

// HandleRefreshAll refreshes every active saved contract
// POST /api/v1/contracts/refresh
func (wc *WatchlistController) HandleRefreshAll(c *gin.Context) {
	summary, err := wc.manager.RefreshAll(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to refresh contracts", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// HandleSimulateBulk simulates selected saved contracts
// POST /api/v1/contracts/simulate
func (wc *WatchlistController) HandleSimulateBulk(c *gin.Context) {
	var req BulkSimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	rows, err := wc.manager.SimulateBulk(c.Request.Context(), req.ContractIDs)
	if err != nil {
		respondError(c, "Bulk simulation failed", err)
		return
	}
	respondRows(c, rows)
}

// HandleCreateGroup creates a watchlist group
// POST /api/v1/groups
func (wc *WatchlistController) HandleCreateGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	group, err := wc.manager.CreateGroup(req.Name)
	if err != nil {
		respondError(c, "Failed to create group", err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// HandleListGroups lists watchlist groups
// GET /api/v1/groups
func (wc *WatchlistController) HandleListGroups(c *gin.Context) {
	groups, err := wc.manager.ListGroups()
	if err != nil {
		respondError(c, "Failed to list groups", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(groups),
		"groups": groups,
	})
}

// HandleGetGroup retrieves a watchlist group
// GET /api/v1/groups/:id
func (wc *WatchlistController) HandleGetGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	group, err := wc.manager.GetGroup(id)
	if err != nil {
		respondError(c, "Group not found", err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// HandleRenameGroup renames a watchlist group
// PATCH /api/v1/groups/:id
func (wc *WatchlistController) HandleRenameGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	group, err := wc.manager.RenameGroup(id, req.Name)
	if err != nil {
		respondError(c, "Failed to rename group", err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// HandleDeleteGroup deletes a watchlist group
// DELETE /api/v1/groups/:id
func (wc *WatchlistController) HandleDeleteGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := wc.manager.DeleteGroup(id); err != nil {
		respondError(c, "Failed to delete group", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully."})
}

// HandleAssignContracts adds contracts to a group or replaces its membership
// POST /api/v1/groups/:id/assign
func (wc *WatchlistController) HandleAssignContracts(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	assigned, err := wc.manager.AssignContracts(id, req.ContractIDs, req.Mode)
	if err != nil {
		respondError(c, "Failed to assign contracts", err)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = services.AssignAppend
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":                  mode,
		"group_id":              id,
		"assigned_contract_ids": assigned,
	})
}

// HandleRemoveContractFromGroup detaches a contract from a group
// DELETE /api/v1/groups/:id/contracts/:contract_id
func (wc *WatchlistController) HandleRemoveContractFromGroup(c *gin.Context) {
	groupID, ok := paramID(c, "id")
	if !ok {
		return
	}
	contractID, ok := paramID(c, "contract_id")
	if !ok {
		return
	}

	if err := wc.manager.RemoveContractFromGroup(groupID, contractID); err != nil {
		respondError(c, "Failed to remove contract from group", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contract removed from group."})
}

// HandleSimulateGroup simulates every contract of a group
// POST /api/v1/groups/:id/simulate
func (wc *WatchlistController) HandleSimulateGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	rows, err := wc.manager.SimulateGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Group simulation failed", err)
		return
	}
	respondRows(c, rows)
}

// HandleStartGroupRefresh starts a background refresh of a group's contracts
// POST /api/v1/groups/:id/refresh
func (wc *WatchlistController) HandleStartGroupRefresh(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	job, err := wc.manager.StartGroupRefresh(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to start group refresh", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"message": fmt.Sprintf("Refreshing %d contracts.", job.TotalContracts),
		"job":     job,
	})
}

// HandleSaveScreenerParams stores a screener parameter set for reuse
// POST /api/v1/screener/params
func (wc *WatchlistController) HandleSaveScreenerParams(c *gin.Context) {
	var req interfaces.ScreenerParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	saved, err := wc.manager.SaveScreenerParams(req)
	if err != nil {
		respondError(c, "Failed to save screener parameters", err)
		return
	}

	c.JSON(http.StatusCreated, saved)
}

// HandleListScreenerParams lists saved screener parameter sets
// GET /api/v1/screener/params
func (wc *WatchlistController) HandleListScreenerParams(c *gin.Context) {
	params, err := wc.manager.ListScreenerParams()
	if err != nil {
		respondError(c, "Failed to list screener parameters", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(params),
		"params": params,
	})
}

// HandleDeleteScreenerParams deletes a saved screener parameter set
// DELETE /api/v1/screener/params/:id
func (wc *WatchlistController) HandleDeleteScreenerParams(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := wc.manager.DeleteScreenerParams(id); err != nil {
		respondError(c, "Failed to delete screener parameters", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Screener parameters deleted successfully."})
}

func respondRows(c *gin.Context, rows []interfaces.ScenarioResult) {
	if len(rows) == 0 {
		c.JSON(http.StatusOK, []interfaces.EmptyResultRow{services.EmptyWatchlistRow()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	var simErr *services.SimulationError
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrNoContracts):
		status = http.StatusBadRequest
	case errors.As(err, &simErr):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be a positive integer",
		})
		return 0, false
	}
	return uint(id), true
}
