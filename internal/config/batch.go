package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BatchConfig is the `-config <file>` YAML shape for fleet/unattended runs:
// a `defaults:` block, plus a list of per-repository RunConfig entries that
// inherit some of its fields (see RunConfig.ApplyDefaultsFrom).
type BatchConfig struct {
	Defaults     RunConfig   `yaml:"defaults"`
	Repositories []RunConfig `yaml:"repositories"`
}

// LoadBatch reads and unmarshals a YAML batch file and applies Defaults into
// every entry via RunConfig.ApplyDefaultsFrom.
func LoadBatch(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	var bc BatchConfig
	if err := yaml.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	bc.Defaults.ApplyDefaults()
	for i := range bc.Repositories {
		bc.Repositories[i].ApplyDefaultsFrom(bc.Defaults)
	}

	return &bc, nil
}
