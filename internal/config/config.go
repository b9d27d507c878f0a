// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the process-level configuration. Runtime stream settings
// (framerate, scaling, quality) live in the store instead, so they can be
// changed while the service runs.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string `mapstructure:"DARPAN_HTTP_ADDR" validate:"required"`
	// StreamAddr is the listen address of the MJPEG broadcast socket.
	StreamAddr string `mapstructure:"DARPAN_STREAM_ADDR" validate:"required"`
	// ScreenID selects the capture device.
	ScreenID int `mapstructure:"DARPAN_SCREEN_ID" validate:"min=0"`
	// DBPath overrides the settings database location. Empty means the
	// default location under the user's home directory.
	DBPath string `mapstructure:"DARPAN_DB_PATH"`
}

// envKeys lists every environment variable the config reads.
var envKeys = []string{
	"DARPAN_HTTP_ADDR",
	"DARPAN_STREAM_ADDR",
	"DARPAN_SCREEN_ID",
	"DARPAN_DB_PATH",
}

// Load reads the configuration from the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	for _, key := range envKeys {
		viper.BindEnv(key)
	}
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("DARPAN_HTTP_ADDR", ":8080")
	viper.SetDefault("DARPAN_STREAM_ADDR", ":9100")
	viper.SetDefault("DARPAN_SCREEN_ID", 0)

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
