// Package config provides configuration management for the monitoring engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Monitoring defaults
const (
	// defaultWinRate is used when strategy.win_rate is unset
	defaultWinRate = 90.0
	// defaultProbLow is used when strategy.prob_low is unset (percent)
	defaultProbLow = 2.5
	// defaultProbHigh is used when strategy.prob_high is unset (percent)
	defaultProbHigh = 12.5
	// defaultCheckInterval is the detection cycle period when unset
	defaultCheckInterval = 30 * time.Second
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	History     HistoryConfig     `yaml:"history"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Storage     StorageConfig     `yaml:"storage"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines broker API settings.
type BrokerConfig struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	AccountID   string `yaml:"account_id"`
	// BuyingPower seeds the paper broker; live mode queries the account.
	BuyingPower float64 `yaml:"buying_power"`
}

// HistoryConfig points at the daily OHLCV files probabilities are built from.
type HistoryConfig struct {
	Dir string `yaml:"dir"` // one <SYMBOL>.csv per underlying
}

// StrategyConfig defines the probability band and sizing parameters.
type StrategyConfig struct {
	Symbol   string  `yaml:"symbol"`
	WinRate  float64 `yaml:"win_rate"`  // target win rate in percent
	ProbLow  float64 `yaml:"prob_low"`  // band lower bound in percent
	ProbHigh float64 `yaml:"prob_high"` // band upper bound in percent
	UsagePct float64 `yaml:"usage_pct"` // share of buying power per entry, percent

	// PreserveLegacyQuantity keeps the single-contract reopen behavior on
	// rolls instead of restoring the closed quantity.
	PreserveLegacyQuantity *bool `yaml:"preserve_legacy_quantity"`

	Condor CondorConfig `yaml:"condor"`
}

// CondorConfig defines the no-risk structure parameters.
type CondorConfig struct {
	Enabled   bool    `yaml:"enabled"`
	WingWidth float64 `yaml:"wing_width"` // strike points between short leg and wing
	Outlook   string  `yaml:"outlook"`    // bullish | bearish
}

// ScheduleConfig defines the detection cycle and market hours.
type ScheduleConfig struct {
	CheckInterval   string `yaml:"check_interval"`
	Timezone        string `yaml:"timezone"`      // e.g., "America/New_York"
	TradingStart    string `yaml:"trading_start"` // "HH:MM"
	TradingEnd      string `yaml:"trading_end"`   // "HH:MM"
	AfterHoursCheck bool   `yaml:"after_hours_check"`
}

// StorageConfig defines where the position ledger lives.
type StorageConfig struct {
	Backend string `yaml:"backend"` // json | sqlite
	Path    string `yaml:"path"`
}

// DashboardConfig defines the HTTP status endpoint settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"` // e.g., ":8080"
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// Defaults are filled in before the checks run.
func (c *Config) Validate() error {
	c.applyDefaults()

	// Environment validation
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	// Broker validation: live mode talks to a real account
	if c.Environment.Mode == "live" {
		if c.Broker.APIKey == "" {
			return fmt.Errorf("broker.api_key is required in live mode")
		}
		if c.Broker.AccountID == "" {
			return fmt.Errorf("broker.account_id is required in live mode")
		}
	}

	// History validation
	if c.History.Dir == "" {
		return fmt.Errorf("history.dir is required")
	}

	// Strategy validation
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if c.Strategy.WinRate <= 0 || c.Strategy.WinRate > 100 {
		return fmt.Errorf("strategy.win_rate must be in (0,100]")
	}
	if c.Strategy.ProbLow < 0 || c.Strategy.ProbHigh > 100 {
		return fmt.Errorf("strategy probability band must stay within [0,100]")
	}
	if c.Strategy.ProbLow >= c.Strategy.ProbHigh {
		return fmt.Errorf("strategy.prob_low (%.2f) must be < strategy.prob_high (%.2f)",
			c.Strategy.ProbLow, c.Strategy.ProbHigh)
	}
	if c.Strategy.UsagePct <= 0 || c.Strategy.UsagePct > 100 {
		return fmt.Errorf("strategy.usage_pct must be in (0,100]")
	}
	if c.Strategy.Condor.Enabled {
		if c.Strategy.Condor.WingWidth <= 0 {
			return fmt.Errorf("strategy.condor.wing_width must be > 0")
		}
		if o := c.Strategy.Condor.Outlook; o != "bullish" && o != "bearish" {
			return fmt.Errorf("strategy.condor.outlook must be 'bullish' or 'bearish'")
		}
	}

	// Storage validation
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if b := c.Storage.Backend; b != "" && b != "json" && b != "sqlite" {
		return fmt.Errorf("storage.backend must be 'json' or 'sqlite'")
	}

	// Dashboard validation
	if c.Dashboard.Enabled && c.Dashboard.Listen == "" {
		return fmt.Errorf("dashboard.listen is required when the dashboard is enabled")
	}

	// Schedule validation
	if _, err := time.ParseDuration(c.Schedule.CheckInterval); err != nil {
		return fmt.Errorf("schedule.check_interval invalid: %w", err)
	}
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Fallback for minimal containers
		loc = time.FixedZone("ET", -5*60*60)
	}
	s, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	e, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil || (s.Hour() > e.Hour() || (s.Hour() == e.Hour() && s.Minute() >= e.Minute())) {
		return fmt.Errorf("schedule trading window invalid (start/end parse/order)")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Strategy.WinRate == 0 {
		c.Strategy.WinRate = defaultWinRate
	}
	if c.Strategy.ProbLow == 0 && c.Strategy.ProbHigh == 0 {
		c.Strategy.ProbLow = defaultProbLow
		c.Strategy.ProbHigh = defaultProbHigh
	}
	if c.Schedule.CheckInterval == "" {
		c.Schedule.CheckInterval = defaultCheckInterval.String()
	}
	if c.Schedule.TradingStart == "" {
		c.Schedule.TradingStart = "09:45"
	}
	if c.Schedule.TradingEnd == "" {
		c.Schedule.TradingEnd = "15:45"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "json"
	}
}

// IsPaperTrading returns true if the engine is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// LegacyQuantity reports whether rolls reopen with a single contract.
// Unset defaults to true, matching the historical ledger behavior.
func (c *Config) LegacyQuantity() bool {
	if c.Strategy.PreserveLegacyQuantity == nil {
		return true
	}
	return *c.Strategy.PreserveLegacyQuantity
}

// GetCheckInterval returns the configured detection cycle period.
func (c *Config) GetCheckInterval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.CheckInterval)
	if err != nil {
		return defaultCheckInterval
	}
	return d
}

// HistoryPath returns the CSV path for one underlying.
func (c *Config) HistoryPath(symbol string) string {
	return fmt.Sprintf("%s/%s.csv", strings.TrimRight(c.History.Dir, "/"), symbol)
}

// IsWithinTradingHours checks if the given time falls within configured trading hours.
func (c *Config) IsWithinTradingHours(now time.Time) bool {
	if c.Schedule.AfterHoursCheck {
		return true
	}

	tz := c.Schedule.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Try fallback to America/New_York
		if fallbackLoc, err2 := time.LoadLocation("America/New_York"); err2 == nil {
			loc = fallbackLoc
		} else {
			// Final fallback to DST-agnostic FixedZone
			loc = time.FixedZone("ET", -5*60*60)
		}
	}
	today := now.In(loc)

	// Only allow Monday–Friday trading
	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return false
	}

	startClock, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	endClock, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil {
		// Safe defaults if misconfigured
		startClock = time.Date(0, 1, 1, 9, 45, 0, 0, loc)
		endClock = time.Date(0, 1, 1, 15, 45, 0, 0, loc)
	}
	start := time.Date(today.Year(), today.Month(), today.Day(),
		startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(today.Year(), today.Month(), today.Day(),
		endClock.Hour(), endClock.Minute(), 0, 0, loc)

	// Inclusive start, exclusive end
	return !today.Before(start) && today.Before(end)
}
