package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"stocktimus/controllers"
	"stocktimus/database"
	"stocktimus/services"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		return runServer()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

func runServer() error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	storage, err := database.NewLocalStorage(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	simCfg := cfg.SimulatorConfig()
	journal, err := services.NewRefreshJournal(cfg.Watchlist.JournalDir, simCfg.Now, logger)
	if err != nil {
		return err
	}
	manager := services.NewWatchlistManager(storage, eng.simulator, eng.aggregator, journal, simCfg, logger)

	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := controllers.NewRouter(
		controllers.NewSimulationController(eng.simulator, eng.runner, eng.screener, logger),
		controllers.NewWatchlistController(manager),
		controllers.NewRefreshJobController(journal),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval := cfg.RefreshInterval(); interval > 0 {
		go manager.MonitorContracts(ctx, interval)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Waiting for refresh jobs")
	manager.WaitForJobs()
	return nil
}
