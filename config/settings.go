package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LoadSettings reads the TOML settings file, creating a default template on
// first run.
func LoadSettings() (*Config, error) {
	cfg := DefaultConfig()
	settingsPath := GetSettingsFilePath()

	if !FileExists(settingsPath) {
		if err := CreateDefaultSettings(); err != nil {
			return nil, fmt.Errorf("failed to create settings file: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(settingsPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	return cfg, nil
}

// LoadSettingsFromPath reads settings from an explicit path, for running
// several study configurations side by side. Returns nil when the file does
// not exist.
func LoadSettingsFromPath(path string) (*Config, error) {
	if !FileExists(path) {
		return nil, nil
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	return cfg, nil
}

// SaveSettings writes the config to the given path with secure permissions
// (it may hold an API key or a provenance passphrase).
func SaveSettings(path string, cfg *Config) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}

// CreateDefaultSettings writes the commented settings template if no settings
// file exists yet.
func CreateDefaultSettings() error {
	configDir := GetConfigDir()
	if err := EnsureDir(configDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		return nil
	}

	content := GenerateSettingsTemplate()
	if err := os.WriteFile(settingsPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
