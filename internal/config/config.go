// ABOUTME: Configuration loading and parsing for joinguard
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete joinguard configuration
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Moderation ModerationConfig `yaml:"moderation"`
	Retention  RetentionConfig  `yaml:"retention"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TelegramConfig holds bot credentials and the protected community.
type TelegramConfig struct {
	Token       string  `yaml:"token"`
	CommunityID int64   `yaml:"community_id"`
	ReviewerIDs []int64 `yaml:"reviewer_ids"`
	// PollTimeout is the long-poll timeout in seconds (Telegram caps at 50)
	PollTimeout int `yaml:"poll_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ModerationConfig holds the risk thresholds consulted when routing
// join requests. The runtime mode toggle lives in the database, not here.
type ModerationConfig struct {
	MinAccountAgeDays      int `yaml:"min_account_age_days"`
	MaxCaptchaAttempts     int `yaml:"max_captcha_attempts"`
	HardCaptchaAttempts    int `yaml:"hard_captcha_attempts"`
	RiskScoreToAdmin       int `yaml:"risk_score_to_admin"`
	RiskScoreToHardCaptcha int `yaml:"risk_score_to_hard_captcha"`

	// AnchorsFile optionally overrides the built-in id/date anchor table
	// used for account-age estimation. TOML, see internal/idage.
	AnchorsFile string `yaml:"anchors_file"`
}

// RetentionConfig holds the maintenance sweep configuration.
type RetentionConfig struct {
	PendingTTL time.Duration `yaml:"-"`
	DecidedTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PendingTTLRaw string `yaml:"pending_ttl"`
	DecidedTTLRaw string `yaml:"decided_ttl"`

	// Schedule is a cron spec; empty disables the sweeper entirely.
	Schedule string `yaml:"schedule"`
}

// APIConfig holds the local ops HTTP API configuration.
type APIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero-valued optional fields. Defaults mirror the
// moderation policy the bot shipped with; all are overridable.
func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "joinguard.db"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30
	}
	if c.Moderation.MinAccountAgeDays == 0 {
		c.Moderation.MinAccountAgeDays = 30
	}
	if c.Moderation.MaxCaptchaAttempts == 0 {
		c.Moderation.MaxCaptchaAttempts = 3
	}
	if c.Moderation.HardCaptchaAttempts == 0 {
		c.Moderation.HardCaptchaAttempts = 1
	}
	if c.Moderation.RiskScoreToAdmin == 0 {
		c.Moderation.RiskScoreToAdmin = 7
	}
	if c.Moderation.RiskScoreToHardCaptcha == 0 {
		c.Moderation.RiskScoreToHardCaptcha = 4
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "@hourly"
	}
	if c.API.Addr == "" {
		c.API.Addr = "127.0.0.1:8484"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.CommunityID == 0 {
		return fmt.Errorf("telegram.community_id is required")
	}
	if len(c.Telegram.ReviewerIDs) == 0 {
		return fmt.Errorf("telegram.reviewer_ids must list at least one reviewer")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Moderation.MaxCaptchaAttempts < 1 {
		return fmt.Errorf("moderation.max_captcha_attempts must be at least 1")
	}
	if c.Moderation.HardCaptchaAttempts < 1 {
		return fmt.Errorf("moderation.hard_captcha_attempts must be at least 1")
	}
	if c.Moderation.MinAccountAgeDays < 0 {
		return fmt.Errorf("moderation.min_account_age_days must not be negative")
	}
	if c.Moderation.RiskScoreToAdmin <= c.Moderation.RiskScoreToHardCaptcha {
		return fmt.Errorf("moderation.risk_score_to_admin (%d) must be greater than risk_score_to_hard_captcha (%d)",
			c.Moderation.RiskScoreToAdmin, c.Moderation.RiskScoreToHardCaptcha)
	}

	if c.Retention.PendingTTL < 0 || c.Retention.DecidedTTL < 0 {
		return fmt.Errorf("retention durations must not be negative")
	}

	if c.API.Enabled && c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is required when the API is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Retention.PendingTTLRaw != "" {
		cfg.Retention.PendingTTL, err = time.ParseDuration(cfg.Retention.PendingTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing pending_ttl %q: %w", cfg.Retention.PendingTTLRaw, err)
		}
	}

	if cfg.Retention.DecidedTTLRaw != "" {
		cfg.Retention.DecidedTTL, err = time.ParseDuration(cfg.Retention.DecidedTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing decided_ttl %q: %w", cfg.Retention.DecidedTTLRaw, err)
		}
	}

	return nil
}

// IsReviewer reports whether the given user id is a configured reviewer.
func (c *Config) IsReviewer(userID int64) bool {
	for _, id := range c.Telegram.ReviewerIDs {
		if id == userID {
			return true
		}
	}
	return false
}
