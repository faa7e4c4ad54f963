// Package config loads engine configuration from file, environment, and
// defaults, and validates it before anything is constructed from it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/consensus"
	"github.com/mkoval/refinex/internal/decision"
	"github.com/mkoval/refinex/internal/refine"
)

// Known evaluator providers.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Evaluator configures the judge model backend.
type Evaluator struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// Reviser configures the revision model backend.
type Reviser struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Config is the full engine configuration.
type Config struct {
	DBPath     string `mapstructure:"db_path"`
	RubricPath string `mapstructure:"rubric_path"`
	NoCache    bool   `mapstructure:"no_cache"`

	Evaluator Evaluator `mapstructure:"evaluator"`
	Reviser   Reviser   `mapstructure:"reviser"`

	Thresholds decision.Thresholds `mapstructure:"thresholds"`
	Consensus  consensus.Config    `mapstructure:"consensus"`
	Cascade    cascade.Config      `mapstructure:"cascade"`
	Refine     refine.Config       `mapstructure:"refine"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./data/refinex.db")
	v.SetDefault("rubric_path", "")
	v.SetDefault("no_cache", false)

	v.SetDefault("evaluator.provider", ProviderOllama)
	v.SetDefault("evaluator.model", "llama3.2")
	v.SetDefault("evaluator.base_url", "http://localhost:11434")
	v.SetDefault("evaluator.timeout_seconds", 120)
	v.SetDefault("evaluator.max_retries", 2)

	v.SetDefault("reviser.model", "llama3.2")
	v.SetDefault("reviser.base_url", "http://localhost:11434")

	v.SetDefault("thresholds.accept", decision.DefaultAccept)
	v.SetDefault("thresholds.fix", decision.DefaultFix)
	v.SetDefault("thresholds.regenerate", decision.DefaultRegenerate)

	v.SetDefault("consensus.tolerance", consensus.DefaultTolerance)
	v.SetDefault("consensus.spread", consensus.DefaultSpread)

	v.SetDefault("cascade.borderline_margin", cascade.DefaultBorderlineMargin)

	v.SetDefault("refine.max_iterations", refine.DefaultMaxIterations)
}

// Load reads configuration from the given file (optional), a refinex.yaml in
// the working directory, and REFINEX_* environment variables, in increasing
// precedence of env over file over defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REFINEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("refinex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	switch c.Evaluator.Provider {
	case ProviderOllama:
	case ProviderOpenRouter:
		if c.Evaluator.APIKey == "" {
			return &internal.ConfigError{Field: "evaluator.api_key", Reason: "required for the openrouter provider"}
		}
	default:
		return &internal.ConfigError{Field: "evaluator.provider", Reason: fmt.Sprintf("unknown provider %q", c.Evaluator.Provider)}
	}
	if c.Evaluator.Model == "" {
		return &internal.ConfigError{Field: "evaluator.model", Reason: "must not be empty"}
	}
	if c.Evaluator.TimeoutSeconds <= 0 {
		return &internal.ConfigError{Field: "evaluator.timeout_seconds", Reason: "must be positive"}
	}
	if c.Evaluator.MaxRetries < 0 {
		return &internal.ConfigError{Field: "evaluator.max_retries", Reason: "must not be negative"}
	}

	if c.Consensus.Tolerance <= 0 {
		return &internal.ConfigError{Field: "consensus.tolerance", Reason: "must be positive"}
	}
	if c.Consensus.Spread <= 0 {
		return &internal.ConfigError{Field: "consensus.spread", Reason: "must be positive"}
	}

	if c.Cascade.BorderlineMargin <= 0 {
		return &internal.ConfigError{Field: "cascade.borderline_margin", Reason: "must be positive"}
	}
	// Borderline bands around adjacent thresholds must not touch, or a score
	// could escalate on two boundaries at once.
	minGap := c.Thresholds.Accept - c.Thresholds.Fix
	if gap := c.Thresholds.Fix - c.Thresholds.Regenerate; gap < minGap {
		minGap = gap
	}
	if 2*c.Cascade.BorderlineMargin >= minGap {
		return &internal.ConfigError{
			Field:  "cascade.borderline_margin",
			Reason: fmt.Sprintf("margin %g too wide for threshold gap %g", c.Cascade.BorderlineMargin, minGap),
		}
	}

	if c.Refine.MaxIterations <= 0 {
		return &internal.ConfigError{Field: "refine.max_iterations", Reason: "must be at least 1"}
	}
	return nil
}
