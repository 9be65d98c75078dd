package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const StrategiesFileName = "strategies.yml"

// StrategySpec is one strategy entry of strategies.yml
type StrategySpec struct {
	// Name must match a registered strategy adapter (e.g., "tikwm")
	Name string `yaml:"name"`

	// Mode is "race" or "sequential"
	Mode string `yaml:"mode"`

	// Group separates adjacent groups that share a mode
	Group string `yaml:"group,omitempty"`

	Timeout  time.Duration `yaml:"timeout"`
	Priority int           `yaml:"priority,omitempty"`

	Platforms []string `yaml:"platforms"`
	Kinds     []string `yaml:"kinds"`
}

// PolicySpec overrides the platform policy table
type PolicySpec struct {
	CollapseSingle *bool  `yaml:"collapse_single,omitempty"`
	Title          string `yaml:"title,omitempty"`
	Uploader       string `yaml:"uploader,omitempty"`
}

// StrategiesConfig holds the strategy table and policy overrides
type StrategiesConfig struct {
	Strategies []StrategySpec         `yaml:"strategies"`
	Policies   map[string]PolicySpec `yaml:"policies,omitempty"`
}

// StrategiesPath returns the strategies.yml to use: the current directory
// first, then the config directory. Empty if neither exists.
func StrategiesPath() string {
	if _, err := os.Stat(StrategiesFileName); err == nil {
		return StrategiesFileName
	}
	if dir, err := ConfigDir(); err == nil {
		path := filepath.Join(dir, StrategiesFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadStrategies reads a strategies file. A missing file is not an error and
// yields nil.
func LoadStrategies(path string) (*StrategiesConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &StrategiesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, s := range cfg.Strategies {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: strategy #%d has no name", path, i+1)
		}
		if s.Mode != "race" && s.Mode != "sequential" {
			return nil, fmt.Errorf("%s: strategy %q has invalid mode %q", path, s.Name, s.Mode)
		}
		if s.Timeout <= 0 {
			return nil, fmt.Errorf("%s: strategy %q needs a positive timeout", path, s.Name)
		}
	}

	return cfg, nil
}

// SaveStrategies writes a strategies file
func SaveStrategies(path string, cfg *StrategiesConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize strategies config: %w", err)
	}

	header := "# vresolve strategy table\n# Ordered per platform and content kind; see 'vresolve strategies'\n\n"
	content := header + string(data)

	return os.WriteFile(path, []byte(content), 0644)
}
