package rubric

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a rubric definition from a YAML file.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric file: %w", err)
	}

	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rubric file: %w", err)
	}
	if r.PassingThreshold == 0 {
		r.PassingThreshold = DefaultPassingThreshold
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
