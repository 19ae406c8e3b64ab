package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path, expands ${VAR} references, merges the
// result over Defaults() (dario.cat/mergo, user values win), and validates
// the merged Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return LoadBytes(raw)
}

// LoadBytes parses already-read YAML content, for tests and embedded
// defaults.
func LoadBytes(raw []byte) (*Config, error) {
	expanded := ExpandEnv(raw)

	var user Config
	if err := yaml.Unmarshal(expanded, &user); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	cfg := Defaults()
	if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merging defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
