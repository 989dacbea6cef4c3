package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Override adjusts a loaded config before it is validated. Command-line
// flags use it to take precedence over the file.
type Override func(*Config)

// WithLogLevel replaces log.level when level is non-empty.
func WithLogLevel(level string) Override {
	return func(cfg *Config) {
		if level != "" {
			cfg.Log.Level = level
		}
	}
}

// Open is the entry point used by start, sweep, config check and reload:
// it loads path, applies the overrides in order and validates the result.
func Open(path string, overrides ...Override) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path, substitutes environment variables, decodes the YAML and
// fills in the expire and queue defaults. It does not validate.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// expandEnv substitutes every ${VAR} and ${VAR:-default} in raw. A variable
// that is unset and has no default is collected into the returned error,
// so one pass reports all of them.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error
	out := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}
		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})
	return out, errors.Join(errs...)
}
