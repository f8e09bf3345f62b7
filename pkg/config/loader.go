package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path, expands `{{.ENV_VAR}}` references, and
// merges the result over Default() — fields left unset in the file keep their
// built-in default rather than zeroing out.
//
// A missing file is not an error: Load returns Default() unchanged, since a
// deployment may rely entirely on environment-variable overrides applied
// downstream (e.g. DB_* via database.LoadConfigFromEnv).
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	expanded := ExpandEnv(raw)

	var loaded Config
	if err := yaml.Unmarshal(expanded, &loaded); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging config file %s over defaults: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
