package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/consensus"
	"github.com/mkoval/refinex/internal/decision"
	"github.com/mkoval/refinex/internal/refine"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from a temp dir so no stray refinex.yaml interferes.
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Evaluator.Provider != ProviderOllama {
		t.Errorf("expected ollama default, got %q", cfg.Evaluator.Provider)
	}
	if cfg.Thresholds.Accept != 0.85 || cfg.Thresholds.Fix != 0.65 || cfg.Thresholds.Regenerate != 0.50 {
		t.Errorf("unexpected default thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Consensus.Tolerance != 0.15 {
		t.Errorf("expected tolerance 0.15, got %g", cfg.Consensus.Tolerance)
	}
	if cfg.Refine.MaxIterations != 2 {
		t.Errorf("expected 2 iterations, got %d", cfg.Refine.MaxIterations)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refinex.yaml")
	data := `
db_path: /tmp/custom.db
evaluator:
  model: qwen3:14b
thresholds:
  accept: 0.9
consensus:
  tolerance: 0.2
refine:
  max_iterations: 3
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("expected file value for db_path, got %q", cfg.DBPath)
	}
	if cfg.Evaluator.Model != "qwen3:14b" {
		t.Errorf("expected file value for evaluator.model, got %q", cfg.Evaluator.Model)
	}
	if cfg.Thresholds.Accept != 0.9 {
		t.Errorf("expected overridden accept threshold, got %g", cfg.Thresholds.Accept)
	}
	// Untouched keys keep their defaults.
	if cfg.Thresholds.Fix != 0.65 {
		t.Errorf("expected default fix threshold, got %g", cfg.Thresholds.Fix)
	}
	if cfg.Refine.MaxIterations != 3 {
		t.Errorf("expected 3 iterations, got %d", cfg.Refine.MaxIterations)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("an explicitly named config file must exist")
	}
}

func validConfig() *Config {
	return &Config{
		DBPath: "./data/refinex.db",
		Evaluator: Evaluator{
			Provider:       ProviderOllama,
			Model:          "llama3.2",
			BaseURL:        "http://localhost:11434",
			TimeoutSeconds: 120,
			MaxRetries:     2,
		},
		Reviser:    Reviser{Model: "llama3.2", BaseURL: "http://localhost:11434"},
		Thresholds: decision.DefaultThresholds(),
		Consensus:  consensus.Config{Tolerance: 0.15, Spread: 0.5},
		Cascade:    cascade.Config{BorderlineMargin: 0.05},
		Refine:     refine.Config{MaxIterations: 2},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad thresholds", func(c *Config) { c.Thresholds.Fix = 0.9 }, "thresholds"},
		{"unknown provider", func(c *Config) { c.Evaluator.Provider = "bedrock" }, "evaluator.provider"},
		{"openrouter without key", func(c *Config) { c.Evaluator.Provider = ProviderOpenRouter }, "evaluator.api_key"},
		{"empty model", func(c *Config) { c.Evaluator.Model = "" }, "evaluator.model"},
		{"zero timeout", func(c *Config) { c.Evaluator.TimeoutSeconds = 0 }, "evaluator.timeout_seconds"},
		{"negative tolerance", func(c *Config) { c.Consensus.Tolerance = -0.1 }, "consensus.tolerance"},
		{"zero spread", func(c *Config) { c.Consensus.Spread = 0 }, "consensus.spread"},
		{"zero margin", func(c *Config) { c.Cascade.BorderlineMargin = 0 }, "cascade.borderline_margin"},
		{"margin wider than threshold gap", func(c *Config) { c.Cascade.BorderlineMargin = 0.10 }, "cascade.borderline_margin"},
		{"zero iterations", func(c *Config) { c.Refine.MaxIterations = 0 }, "refine.max_iterations"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *internal.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, cfgErr.Field)
			}
		})
	}
}

func TestValidate_OpenRouterWithKey(t *testing.T) {
	cfg := validConfig()
	cfg.Evaluator.Provider = ProviderOpenRouter
	cfg.Evaluator.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
