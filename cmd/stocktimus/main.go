// Stocktimus: options scenario simulation and screening.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"os"
	"stocktimus/config"
	"stocktimus/interfaces"
	"stocktimus/services"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfg    *config.Config
	logger *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stocktimus",
	Short: "Options scenario simulation and screening",
	Long: `Stocktimus values option contracts under hypothetical underlying moves,
rolls them into watchlist equity projections and screens tickers for
contracts near a target strike and expiration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if fixture, _ := cmd.Flags().GetString("fixture"); fixture != "" {
			cfg.MarketData.Provider = "static"
			cfg.MarketData.FixturePath = fixture
		}
		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		logger = services.NewLogger(level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("fixture", "", "serve market data from a JSON fixture instead of Alpaca")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(screenCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stocktimus %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
	},
}

// newGateway builds the configured market data gateway
func newGateway() (interfaces.MarketDataGateway, error) {
	switch cfg.MarketData.Provider {
	case "static":
		if cfg.MarketData.FixturePath == "" {
			return nil, fmt.Errorf("static market data requires marketdata.fixture_path")
		}
		return services.LoadStaticGateway(cfg.MarketData.FixturePath)
	case "alpaca", "":
		if cfg.MarketData.Alpaca.APIKey == "" || cfg.MarketData.Alpaca.SecretKey == "" {
			logger.Warn("Alpaca credentials not set, market data requests will fail")
		}
		return services.NewAlpacaGateway(cfg.AlpacaGatewayConfig(), logger), nil
	}
	return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
}

// engine is the set of core services shared by every command
type engine struct {
	simulator  *services.ScenarioSimulator
	aggregator *services.PortfolioAggregator
	runner     *services.WatchlistRunner
	screener   *services.ScreenerAnalyzer
}

func newEngine() (*engine, error) {
	gateway, err := newGateway()
	if err != nil {
		return nil, err
	}

	simConfig := cfg.SimulatorConfig()
	simulator := services.NewScenarioSimulator(gateway, simConfig, logger)
	aggregator := services.NewPortfolioAggregator(simulator, cfg.Simulation.Concurrency, logger)

	return &engine{
		simulator:  simulator,
		aggregator: aggregator,
		runner:     services.NewWatchlistRunner(aggregator, simConfig, logger),
		screener:   services.NewScreenerAnalyzer(gateway, cfg.ScreenerConfig(), simConfig, logger),
	}, nil
}
