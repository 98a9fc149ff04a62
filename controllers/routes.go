package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the HTTP routes. watchlist and jobs may be nil when no
// storage is configured; the saved-contract routes are then not registered.
func NewRouter(simulation *SimulationController, watchlist *WatchlistController, jobs *RefreshJobController, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/watchlist/run", simulation.HandleRunWatchlist)
		api.POST("/watchlist/simulate", simulation.HandleSimulateContract)
		api.POST("/screener/run", simulation.HandleScreen)
		api.GET("/options-chain", simulation.HandleOptionChain)
	}

	if watchlist == nil {
		return router
	}

	contracts := api.Group("/contracts")
	{
		contracts.POST("", watchlist.HandleAddContract)
		contracts.GET("", watchlist.HandleListContracts)
		contracts.POST("/simulate", watchlist.HandleSimulateBulk)
		contracts.POST("/refresh", watchlist.HandleRefreshAll)
		contracts.GET("/:id", watchlist.HandleGetContract)
		contracts.DELETE("/:id", watchlist.HandleDeleteContract)
		contracts.PATCH("/:id/reset", watchlist.HandleResetCountdown)
		contracts.PATCH("/:id/refresh", watchlist.HandleRefreshContract)
	}

	groups := api.Group("/groups")
	{
		groups.POST("", watchlist.HandleCreateGroup)
		groups.GET("", watchlist.HandleListGroups)
		groups.GET("/:id", watchlist.HandleGetGroup)
		groups.PATCH("/:id", watchlist.HandleRenameGroup)
		groups.DELETE("/:id", watchlist.HandleDeleteGroup)
		groups.POST("/:id/assign", watchlist.HandleAssignContracts)
		groups.DELETE("/:id/contracts/:contract_id", watchlist.HandleRemoveContractFromGroup)
		groups.POST("/:id/simulate", watchlist.HandleSimulateGroup)
		groups.POST("/:id/refresh", watchlist.HandleStartGroupRefresh)
	}

	screener := api.Group("/screener/params")
	{
		screener.GET("", watchlist.HandleListScreenerParams)
		screener.POST("", watchlist.HandleSaveScreenerParams)
		screener.DELETE("/:id", watchlist.HandleDeleteScreenerParams)
	}

	if jobs == nil {
		return router
	}

	api.GET("/refresh-jobs/:id", jobs.HandleGetJob)
	logs := api.Group("/refresh-logs")
	{
		logs.GET("", jobs.HandleListLogs)
		logs.GET("/today", jobs.HandleGetCurrentLog)
		logs.GET("/:date", jobs.HandleGetLogByDate)
	}

	return router
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil {
			return
		}
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("Request handled")
	}
}
