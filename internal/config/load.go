// Package config holds run options and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ExpandEnv substitutes $VAR, ${VAR} and ${VAR:-default} from the
// environment. A default applies when VAR is unset or empty.
func ExpandEnv(input string) string {
	return os.Expand(input, lookupWithDefault)
}

func lookupWithDefault(ref string) string {
	name, fallback, hasDefault := strings.Cut(ref, ":-")
	if v := os.Getenv(name); v != "" || !hasDefault {
		return v
	}
	return fallback
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads a YAML file on top of Default(). Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return cfg, nil
}
