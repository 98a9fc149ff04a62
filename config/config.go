// Package config loads application settings from defaults, an optional YAML
// file and STOCKTIMUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"stocktimus/services"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Screener   ScreenerConfig   `mapstructure:"screener"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Watchlist  WatchlistConfig  `mapstructure:"watchlist"`
	API        APIConfig        `mapstructure:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// MarketDataConfig selects and configures the market data gateway.
type MarketDataConfig struct {
	Provider    string       `mapstructure:"provider"` // "alpaca" or "static"
	FixturePath string       `mapstructure:"fixture_path"`
	TimeoutSec  int          `mapstructure:"timeout_sec"`
	Alpaca      AlpacaConfig `mapstructure:"alpaca"`
}

// AlpacaConfig holds Alpaca market data credentials.
type AlpacaConfig struct {
	APIKey      string `mapstructure:"api_key"`
	SecretKey   string `mapstructure:"secret_key"`
	DataURL     string `mapstructure:"data_url"`
	StockFeed   string `mapstructure:"stock_feed"`
	OptionsFeed string `mapstructure:"options_feed"`
}

// SimulationConfig holds the pricing constants.
type SimulationConfig struct {
	RiskFreeRate       float64   `mapstructure:"risk_free_rate"`
	VolatilityFloor    float64   `mapstructure:"volatility_floor"`
	Scenarios          []float64 `mapstructure:"scenarios"`
	MinTimeToExpiry    float64   `mapstructure:"min_time_to_expiry"`
	ContractMultiplier float64   `mapstructure:"contract_multiplier"`
	Concurrency        int       `mapstructure:"concurrency"`
}

// ScreenerConfig holds the screening windows.
type ScreenerConfig struct {
	ExpirationWindowDays    int     `mapstructure:"expiration_window_days"`
	StrikeBand              float64 `mapstructure:"strike_band"`
	CandidatesPerExpiration int     `mapstructure:"candidates_per_expiration"`
	ChainLimit              int     `mapstructure:"chain_limit"`
}

// DatabaseConfig holds the watchlist database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// WatchlistConfig holds background refresh settings.
type WatchlistConfig struct {
	RefreshIntervalSec int    `mapstructure:"refresh_interval_sec"` // 0 disables
	JournalDir         string `mapstructure:"journal_dir"`          // "" keeps refresh jobs in memory
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads the configuration. When path is empty it looks for config.yaml
// in ./config and ~/.stocktimus; a missing file is not an error.
//
// Environment variables override file values.
// Format: STOCKTIMUS_<SECTION>_<KEY>, e.g., STOCKTIMUS_API_PORT
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(homeDir(), ".stocktimus"))
	}

	v.SetEnvPrefix("STOCKTIMUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Market data
	v.SetDefault("marketdata.provider", "alpaca")
	v.SetDefault("marketdata.fixture_path", "")
	v.SetDefault("marketdata.timeout_sec", 30)
	v.SetDefault("marketdata.alpaca.api_key", "")
	v.SetDefault("marketdata.alpaca.secret_key", "")
	v.SetDefault("marketdata.alpaca.data_url", "https://data.alpaca.markets")
	v.SetDefault("marketdata.alpaca.stock_feed", "iex")
	v.SetDefault("marketdata.alpaca.options_feed", "indicative")

	// Simulation
	v.SetDefault("simulation.risk_free_rate", 0.05)
	v.SetDefault("simulation.volatility_floor", 0.30)
	v.SetDefault("simulation.scenarios", services.DefaultScenarios)
	v.SetDefault("simulation.min_time_to_expiry", 0.0001)
	v.SetDefault("simulation.contract_multiplier", 100)
	v.SetDefault("simulation.concurrency", 1)

	// Screener
	v.SetDefault("screener.expiration_window_days", 30)
	v.SetDefault("screener.strike_band", 0.05)
	v.SetDefault("screener.candidates_per_expiration", 2)
	v.SetDefault("screener.chain_limit", 1000)

	v.SetDefault("database.path", "./data/stocktimus.db")
	v.SetDefault("watchlist.refresh_interval_sec", 0)
	v.SetDefault("watchlist.journal_dir", "./data/refresh_jobs")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 4534)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads the Alpaca credentials under their usual names.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("ALPACA_API_KEY"); key != "" && cfg.MarketData.Alpaca.APIKey == "" {
		cfg.MarketData.Alpaca.APIKey = key
	}
	if key := os.Getenv("ALPACA_SECRET_KEY"); key != "" && cfg.MarketData.Alpaca.SecretKey == "" {
		cfg.MarketData.Alpaca.SecretKey = key
	}
}

// SimulatorConfig converts the simulation section for the simulator
func (c *Config) SimulatorConfig() services.SimulatorConfig {
	cfg := services.DefaultSimulatorConfig()
	cfg.RiskFreeRate = c.Simulation.RiskFreeRate
	if c.Simulation.VolatilityFloor > 0 {
		cfg.VolatilityFloor = c.Simulation.VolatilityFloor
	}
	if len(c.Simulation.Scenarios) > 0 {
		cfg.Scenarios = append([]float64(nil), c.Simulation.Scenarios...)
	}
	if c.Simulation.MinTimeToExpiry > 0 {
		cfg.MinTimeToExpiry = c.Simulation.MinTimeToExpiry
	}
	if c.Simulation.ContractMultiplier > 0 {
		cfg.ContractMultiplier = c.Simulation.ContractMultiplier
	}
	return cfg
}

// ScreenerConfig converts the screener section for the screener
func (c *Config) ScreenerConfig() services.ScreenerConfig {
	cfg := services.DefaultScreenerConfig()
	cfg.ExpirationWindowDays = c.Screener.ExpirationWindowDays
	cfg.StrikeBand = c.Screener.StrikeBand
	cfg.CandidatesPerExpiration = c.Screener.CandidatesPerExpiration
	cfg.ChainLimit = c.Screener.ChainLimit
	return cfg
}

// AlpacaGatewayConfig converts the market data section for the Alpaca gateway
func (c *Config) AlpacaGatewayConfig() services.AlpacaConfig {
	return services.AlpacaConfig{
		APIKey:      c.MarketData.Alpaca.APIKey,
		SecretKey:   c.MarketData.Alpaca.SecretKey,
		DataURL:     c.MarketData.Alpaca.DataURL,
		StockFeed:   c.MarketData.Alpaca.StockFeed,
		OptionsFeed: c.MarketData.Alpaca.OptionsFeed,
		Timeout:     time.Duration(c.MarketData.TimeoutSec) * time.Second,
	}
}

// RefreshInterval is the background watchlist refresh period, 0 when disabled
func (c *Config) RefreshInterval() time.Duration {
	if c.Watchlist.RefreshIntervalSec <= 0 {
		return 0
	}
	return time.Duration(c.Watchlist.RefreshIntervalSec) * time.Second
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
