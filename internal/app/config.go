package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	MetadataPath string // resolved dependency metadata document (json)
	SettingsPath string // generation settings (hcl or toml)

	// Mode and OutputRoot override the settings document when non-empty.
	Mode       string
	OutputRoot string

	// WorkDir is the workspace directory generated paths are relative to.
	WorkDir string

	LogFormat string
	LogLevel  string

	// DryRun resolves and renders everything but commits nothing.
	DryRun bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.MetadataPath == "" {
		return nil, errors.New("MetadataPath is a required configuration field and cannot be empty")
	}
	if cfg.SettingsPath == "" {
		return nil, errors.New("SettingsPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	return &cfg, nil
}
