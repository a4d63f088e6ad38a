package platform

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the orchestration core reads at startup.
// Three-layer priority, lowest to highest: built-in defaults, DERMAORCH_*
// environment variables, functional options passed to NewConfig.
type Config struct {
	PerAgentTimeout      time.Duration
	MaxExpansions        int
	PlanDeadline         time.Duration
	MaxReplans           int
	ReasoningBankDim     int
	ConfidenceLowThreshold    float64
	SafetyCalibrationThreshold float64
	MaxPatternsBruteForce int
	PersistenceFlushInterval time.Duration

	DataDir    string
	RedisURL   string
	LogLevel   string
	LogFormat  string

	logger Logger
}

// Option mutates a Config under construction; NewConfig applies each in
// order after defaults and environment variables have been loaded.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		PerAgentTimeout:      10 * time.Second,
		MaxExpansions:        10000,
		PlanDeadline:         500 * time.Millisecond,
		MaxReplans:           5,
		ReasoningBankDim:     384,
		ConfidenceLowThreshold:    0.65,
		SafetyCalibrationThreshold: 0.5,
		MaxPatternsBruteForce: 10000,
		PersistenceFlushInterval: time.Second,
		DataDir:    "./data",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("DERMAORCH_PER_AGENT_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DERMAORCH_PER_AGENT_TIMEOUT_MS: %w", err)
		}
		c.PerAgentTimeout = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("DERMAORCH_MAX_EXPANSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DERMAORCH_MAX_EXPANSIONS: %w", err)
		}
		c.MaxExpansions = n
	}
	if v := os.Getenv("DERMAORCH_PLAN_DEADLINE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DERMAORCH_PLAN_DEADLINE_MS: %w", err)
		}
		c.PlanDeadline = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("DERMAORCH_MAX_REPLANS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DERMAORCH_MAX_REPLANS: %w", err)
		}
		c.MaxReplans = n
	}
	if v := os.Getenv("DERMAORCH_REASONING_BANK_DIM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DERMAORCH_REASONING_BANK_DIM: %w", err)
		}
		c.ReasoningBankDim = n
	}
	if v := os.Getenv("DERMAORCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DERMAORCH_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("DERMAORCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DERMAORCH_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return nil
}

// NewConfig builds a validated Config: defaults, then environment, then
// the supplied options, matching the layering used throughout the
// example pack's configuration helpers.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = NewProductionLogger(cfg.LogLevel, cfg.LogFormat, "dermatology-goap-orchestrator")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PerAgentTimeout <= 0 {
		return fmt.Errorf("%w: per-agent timeout must be positive", ErrInvalidConfiguration)
	}
	if c.MaxExpansions <= 0 {
		return fmt.Errorf("%w: max expansions must be positive", ErrInvalidConfiguration)
	}
	if c.ReasoningBankDim <= 0 {
		return fmt.Errorf("%w: reasoning bank dimension must be positive", ErrInvalidConfiguration)
	}
	if c.MaxReplans < 0 {
		return fmt.Errorf("%w: max replans cannot be negative", ErrInvalidConfiguration)
	}
	return nil
}

// Logger returns the configured logger, building a default one lazily
// if NewConfig was bypassed (e.g. in table-driven tests).
func (c *Config) Logger() Logger {
	if c.logger == nil {
		c.logger = NewProductionLogger(c.LogLevel, c.LogFormat, "dermatology-goap-orchestrator")
	}
	return c.logger
}

func WithPerAgentTimeout(d time.Duration) Option {
	return func(c *Config) error { c.PerAgentTimeout = d; return nil }
}

func WithMaxExpansions(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("%w: max expansions must be positive", ErrInvalidConfiguration)
		}
		c.MaxExpansions = n
		return nil
	}
}

func WithPlanDeadline(d time.Duration) Option {
	return func(c *Config) error { c.PlanDeadline = d; return nil }
}

func WithMaxReplans(n int) Option {
	return func(c *Config) error { c.MaxReplans = n; return nil }
}

func WithReasoningBankDimension(d int) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: reasoning bank dimension must be positive", ErrInvalidConfiguration)
		}
		c.ReasoningBankDim = d
		return nil
	}
}

func WithConfidenceLowThreshold(t float64) Option {
	return func(c *Config) error { c.ConfidenceLowThreshold = t; return nil }
}

func WithSafetyCalibrationThreshold(t float64) Option {
	return func(c *Config) error { c.SafetyCalibrationThreshold = t; return nil }
}

func WithMaxPatternsBruteForce(n int) Option {
	return func(c *Config) error { c.MaxPatternsBruteForce = n; return nil }
}

func WithPersistenceFlushInterval(d time.Duration) Option {
	return func(c *Config) error { c.PersistenceFlushInterval = d; return nil }
}

func WithDataDir(dir string) Option {
	return func(c *Config) error { c.DataDir = dir; return nil }
}

func WithRedisURL(url string) Option {
	return func(c *Config) error { c.RedisURL = url; return nil }
}

func WithLogLevel(level string) Option {
	return func(c *Config) error { c.LogLevel = level; return nil }
}

func WithLogFormat(format string) Option {
	return func(c *Config) error { c.LogFormat = format; return nil }
}

func WithLogger(l Logger) Option {
	return func(c *Config) error { c.logger = l; return nil }
}
