package controllers

import (
	"errors"
	"net/http"
	"stocktimus/interfaces"
	"stocktimus/services"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SimulationController handles watchlist simulation and screening
type SimulationController struct {
	simulator *services.ScenarioSimulator
	runner    *services.WatchlistRunner
	screener  *services.ScreenerAnalyzer
	logger    *logrus.Logger
}

// NewSimulationController creates a new simulation controller
func NewSimulationController(
	simulator *services.ScenarioSimulator,
	runner *services.WatchlistRunner,
	screener *services.ScreenerAnalyzer,
	logger *logrus.Logger,
) *SimulationController {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &SimulationController{
		simulator: simulator,
		runner:    runner,
		screener:  screener,
		logger:    logger,
	}
}

// RunWatchlistRequest represents a watchlist run request
type RunWatchlistRequest struct {
	Contracts []interfaces.ContractSpec `json:"contracts"`
}

// ScreenRequest represents a screener request
type ScreenRequest struct {
	ParamSets []interfaces.ScreenerParams `json:"param_sets"`
}

// HandleRunWatchlist simulates a list of contracts
// POST /api/v1/watchlist/run
func (sc *SimulationController) HandleRunWatchlist(c *gin.Context) {
	var req RunWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if len(req.Contracts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No contracts provided."})
		return
	}

	sc.logger.WithField("contracts", len(req.Contracts)).Info("Running watchlist")

	rows := sc.runner.SimulateContracts(c.Request.Context(), req.Contracts)
	if len(rows) == 0 {
		c.JSON(http.StatusOK, []interfaces.EmptyResultRow{services.EmptyWatchlistRow()})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// HandleSimulateContract simulates a single contract. A failed simulation is
// reported as a single error row.
// POST /api/v1/watchlist/simulate
func (sc *SimulationController) HandleSimulateContract(c *gin.Context) {
	var spec interfaces.ContractSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	rows, err := sc.simulator.Simulate(c.Request.Context(), spec)
	if err != nil {
		var simErr *services.SimulationError
		if !errors.As(err, &simErr) {
			sc.logger.WithError(err).Error("Unexpected simulation failure")
		}
		c.JSON(http.StatusOK, []interfaces.ErrorRow{{Error: err.Error()}})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// HandleScreen runs one or more screener parameter sets
// POST /api/v1/screener/run
func (sc *SimulationController) HandleScreen(c *gin.Context) {
	var req ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if len(req.ParamSets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No parameter sets provided."})
		return
	}

	sc.logger.WithField("param_sets", len(req.ParamSets)).Info("Running screener")

	results := sc.screener.Screen(c.Request.Context(), req.ParamSets)
	c.JSON(http.StatusOK, results)
}

// HandleOptionChain lists the expirations and strikes listed for a ticker
// GET /api/v1/options-chain?ticker=AAPL
func (sc *SimulationController) HandleOptionChain(c *gin.Context) {
	ticker := strings.TrimSpace(c.Query("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticker is required"})
		return
	}

	chain, err := sc.screener.OptionChain(c.Request.Context(), ticker)
	if err != nil {
		sc.logger.WithField("ticker", ticker).WithError(err).Error("Failed to fetch option chain")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch option chain",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, chain)
}
