package main

import (
	"fmt"

	"github.com/utc-chat/peerlink/internal/config"
)

// configPath resolves the --config flag or the default location.
func configPath() (string, error) {
	if globalConfigPath != "" {
		return globalConfigPath, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config from the resolved path.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config (run `peerlink init` first?): %w", err)
	}
	if cfg.Device.Name == "" {
		return nil, fmt.Errorf("config: device name is not set")
	}
	if cfg.Network.ServerURL == "" {
		return nil, fmt.Errorf("config: network server_url is not set")
	}
	return cfg, nil
}
