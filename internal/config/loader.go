package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. BOOKVIZ_FEED_DEPTH or
// BOOKVIZ_REDIS_ENABLED. List values are comma separated.
const EnvPrefix = "BOOKVIZ"

// Load reads the TOML file at path over Defaults, loads a .env file if one
// exists, then applies BOOKVIZ_* overrides. A missing file is not an error
// when optional is true. The result is NOT validated; call Validate.
func Load(path string, optional bool) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !(optional && errors.Is(err, fs.ErrNotExist)) {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return &cfg, nil
}
