package app

import (
	"github.com/specialistvlad/wfengine/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPath is the file the server configuration was read from, if any.
	ConfigPath string
	Server     config.Server
}

// NewConfig validates the merged configuration.
func NewConfig(cfg Config) (*Config, error) {
	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
