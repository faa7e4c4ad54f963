package cmd

import (
	"fmt"
	"os"

	"github.com/mkoval/refinex/internal/config"
	"github.com/mkoval/refinex/internal/engine"
	"github.com/mkoval/refinex/internal/rubric"
	"github.com/mkoval/refinex/internal/store"
)

// buildEngine loads configuration, applies flag overrides, and wires the
// engine with its sqlite store. The caller owns closing the returned store.
func buildEngine(cfgFile string, override func(*config.Config)) (*engine.Engine, *store.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	r, err := loadRubric(cfg.RubricPath)
	if err != nil {
		return nil, nil, err
	}

	var db *store.Store
	if cfg.DBPath != "" {
		db, err = store.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	eng, err := engine.New(cfg, r, engine.Options{Store: db})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}
	return eng, db, nil
}

func loadRubric(path string) (*rubric.Rubric, error) {
	if path == "" {
		return rubric.Default(), nil
	}
	return rubric.Load(path)
}

// readReferences loads each file's contents as one reference document.
func readReferences(paths []string) ([]string, error) {
	var refs []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference file: %w", err)
		}
		refs = append(refs, string(data))
	}
	return refs, nil
}
