package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds prompt template overrides. Empty fields fall back to the
// built-in templates.
type Prompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// LoadPrompts reads prompt templates from a YAML file. An empty path yields
// empty overrides.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return &Prompts{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts Prompts
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	return &prompts, nil
}
