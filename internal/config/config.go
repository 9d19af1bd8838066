package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/rewired-gh/transferoracle/internal/evaluator"
	"github.com/rewired-gh/transferoracle/internal/fixtures"
	"github.com/rewired-gh/transferoracle/internal/laliga"
	"github.com/rewired-gh/transferoracle/internal/signals"
)

// EnvPrefix prefixes every environment override, e.g.
// TRANSFER_ORACLE_LALIGA_REFRESH_TOKEN.
const EnvPrefix = "TRANSFER_ORACLE"

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Fixtures  FixturesConfig  `mapstructure:"fixtures"`
	Transfers TransfersConfig `mapstructure:"transfers"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	LaLiga    LaLigaConfig    `mapstructure:"laliga"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Server    ServerConfig    `mapstructure:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DataConfig locates the snapshot directory and the managed team
type DataConfig struct {
	Root     string `mapstructure:"root"`
	TeamName string `mapstructure:"team_name"`
	Horizon  int    `mapstructure:"horizon"`
}

// EvaluatorConfig holds the scoring weights and constants
type EvaluatorConfig struct {
	Weights   evaluator.Weights   `mapstructure:"weights"`
	Constants evaluator.Constants `mapstructure:"constants"`
}

// FixturesConfig tunes the difficulty model
type FixturesConfig struct {
	HomeAdvantage  float64   `mapstructure:"home_advantage"`
	AwayPenalty    float64   `mapstructure:"away_penalty"`
	HorizonWeights []float64 `mapstructure:"horizon_weights"`
}

// TransfersConfig holds transfer search configuration
type TransfersConfig struct {
	MaxResults            int     `mapstructure:"max_results"`
	Threshold             float64 `mapstructure:"threshold"`
	SamePosition          bool    `mapstructure:"same_position"`
	Workers               int     `mapstructure:"workers"`
	CandidatesPerPosition int     `mapstructure:"candidates_per_position"`
}

// SignalsConfig holds scraping and signal cache configuration
type SignalsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	NameMappingFile    string        `mapstructure:"name_mapping_file"`
	CachePath          string        `mapstructure:"cache_path"`
	MaxPerRun          int           `mapstructure:"max_per_run"`
	EnrichSquad        bool          `mapstructure:"enrich_squad"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// LaLigaConfig holds fantasy API configuration for the snapshot download
type LaLigaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	LeagueID     string        `mapstructure:"league_id"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	RefreshToken string        `mapstructure:"refresh_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ScheduleConfig holds the periodic refresh configuration
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv are unprefixed variable names accepted for the API credentials.
var legacyEnv = map[string]string{
	"laliga.token_url":     "TOKEN_URL",
	"laliga.client_id":     "CLIENT_ID",
	"laliga.refresh_token": "REFRESH_TOKEN",
	"logging.level":        "LOG_LEVEL",
}

// Load reads configuration from an optional file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override, nested keys use underscores
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Injury factors are keyed by category and not configurable
	cfg.Evaluator.Constants.InjuryFactors = evaluator.DefaultInjuryFactors()
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.root", "./data")
	v.SetDefault("data.team_name", "")
	v.SetDefault("data.horizon", fixtures.DefaultHorizon)

	// Evaluator defaults
	w := evaluator.DefaultWeights()
	v.SetDefault("evaluator.weights.form", w.Form)
	v.SetDefault("evaluator.weights.form_arrow", w.FormArrow)
	v.SetDefault("evaluator.weights.fixtures", w.Fixtures)
	v.SetDefault("evaluator.weights.season", w.Season)
	v.SetDefault("evaluator.weights.value", w.Value)
	v.SetDefault("evaluator.weights.hierarchy", w.Hierarchy)
	v.SetDefault("evaluator.weights.probability", w.Probability)
	v.SetDefault("evaluator.weights.injury", w.Injury)

	c := evaluator.DefaultConstants()
	v.SetDefault("evaluator.constants.form_cap", c.FormCap)
	v.SetDefault("evaluator.constants.season_cap", c.SeasonCap)
	v.SetDefault("evaluator.constants.value_ratio_cap", c.ValueRatioCap)
	v.SetDefault("evaluator.constants.price_floor", c.PriceFloor)
	v.SetDefault("evaluator.constants.hierarchy_zero_rank", c.HierarchyZeroRank)
	v.SetDefault("evaluator.constants.form_arrow_default", c.FormArrowDefault)
	v.SetDefault("evaluator.constants.hierarchy_default", c.HierarchyDefault)
	v.SetDefault("evaluator.constants.probability_default", c.ProbabilityDefault)
	v.SetDefault("evaluator.constants.injury_default", c.InjuryDefault)
	v.SetDefault("evaluator.constants.minutes_threshold", c.MinutesThreshold)
	v.SetDefault("evaluator.constants.low_minutes_multiplier", c.LowMinutesMultiplier)
	v.SetDefault("evaluator.constants.unavailable_multiplier", c.UnavailableMultiplier)
	v.SetDefault("evaluator.constants.fixture_horizon", c.FixtureHorizon)

	// Fixture model defaults
	v.SetDefault("fixtures.home_advantage", fixtures.DefaultHomeAdvantage)
	v.SetDefault("fixtures.away_penalty", fixtures.DefaultAwayPenalty)
	v.SetDefault("fixtures.horizon_weights", fixtures.DefaultHorizonWeights)

	// Transfer defaults
	v.SetDefault("transfers.max_results", 5)
	v.SetDefault("transfers.threshold", 3.0)
	v.SetDefault("transfers.same_position", false)
	v.SetDefault("transfers.workers", 4)
	v.SetDefault("transfers.candidates_per_position", 15)

	// Signal defaults
	bs := signals.DefaultBreakerSettings()
	v.SetDefault("signals.enabled", true)
	v.SetDefault("signals.base_url", signals.DefaultBaseURL)
	v.SetDefault("signals.timeout", signals.DefaultTimeout)
	v.SetDefault("signals.name_mapping_file", "")
	v.SetDefault("signals.cache_path", "./data/signals.db")
	v.SetDefault("signals.max_per_run", 0)
	v.SetDefault("signals.enrich_squad", true)
	v.SetDefault("signals.breaker_failures", bs.ConsecutiveFailures)
	v.SetDefault("signals.breaker_open_timeout", bs.OpenTimeout)

	// LaLiga defaults
	v.SetDefault("laliga.enabled", false)
	v.SetDefault("laliga.api_base_url", laliga.DefaultAPIBaseURL)
	v.SetDefault("laliga.league_id", "")
	v.SetDefault("laliga.token_url", "")
	v.SetDefault("laliga.client_id", "")
	v.SetDefault("laliga.refresh_token", "")
	v.SetDefault("laliga.timeout", "30s")
	v.SetDefault("laliga.max_retries", 3)
	v.SetDefault("laliga.retry_delay", "1s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")
	v.SetDefault("telegram.cooldown", "24h")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")

	// Schedule defaults
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.spec", "0 8 * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Data config
	if c.Data.Root == "" {
		return fmt.Errorf("data.root is required")
	}
	if c.Data.Horizon < 1 {
		return fmt.Errorf("data.horizon must be at least 1")
	}

	// Validate Evaluator config
	if err := c.Evaluator.Weights.Validate(); err != nil {
		return fmt.Errorf("evaluator.weights: %w", err)
	}
	if err := c.Evaluator.Constants.Validate(); err != nil {
		return fmt.Errorf("evaluator.constants: %w", err)
	}

	// Validate Fixtures config
	if c.Fixtures.HomeAdvantage < 0 || c.Fixtures.AwayPenalty < 0 {
		return fmt.Errorf("fixtures.home_advantage and fixtures.away_penalty must not be negative")
	}
	for _, w := range c.Fixtures.HorizonWeights {
		if w <= 0 {
			return fmt.Errorf("fixtures.horizon_weights must be positive")
		}
	}

	// Validate Transfers config
	if c.Transfers.MaxResults < 1 {
		return fmt.Errorf("transfers.max_results must be at least 1")
	}
	if c.Transfers.Threshold < 0 {
		return fmt.Errorf("transfers.threshold must not be negative")
	}
	if c.Transfers.Workers < 1 {
		return fmt.Errorf("transfers.workers must be at least 1")
	}
	if c.Transfers.CandidatesPerPosition < 0 {
		return fmt.Errorf("transfers.candidates_per_position must not be negative")
	}

	// Validate Signals config
	if c.Signals.Enabled {
		if c.Signals.BaseURL == "" {
			return fmt.Errorf("signals.base_url is required when signals are enabled")
		}
		if c.Signals.Timeout <= 0 {
			return fmt.Errorf("signals.timeout must be positive")
		}
		if c.Signals.MaxPerRun < 0 {
			return fmt.Errorf("signals.max_per_run must not be negative")
		}
		if c.Signals.BreakerFailures < 1 {
			return fmt.Errorf("signals.breaker_failures must be at least 1")
		}
	}

	// Validate LaLiga config
	if c.LaLiga.Enabled {
		if c.LaLiga.LeagueID == "" {
			return fmt.Errorf("laliga.league_id is required when the download is enabled")
		}
		if err := c.Credentials().Validate(); err != nil {
			return fmt.Errorf("laliga: %w", err)
		}
		if c.LaLiga.MaxRetries < 1 {
			return fmt.Errorf("laliga.max_retries must be at least 1")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}

	// Validate Schedule config
	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
			return fmt.Errorf("schedule.spec is invalid: %w", err)
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Credentials returns the fantasy API credentials
func (c *Config) Credentials() laliga.Credentials {
	return laliga.Credentials{
		TokenURL:     c.LaLiga.TokenURL,
		ClientID:     c.LaLiga.ClientID,
		RefreshToken: c.LaLiga.RefreshToken,
	}
}

// BreakerSettings returns the scraper circuit breaker settings
func (c *Config) BreakerSettings() signals.BreakerSettings {
	return signals.BreakerSettings{
		ConsecutiveFailures: c.Signals.BreakerFailures,
		OpenTimeout:         c.Signals.BreakerOpenTimeout,
	}
}
