package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConfigName = ".opsbook"
	defaultConfigDir  = ".opsbook"
)

// Manager handles opsbook configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &Config{},
	}
}

// Load loads the opsbook configuration from file
func (m *Manager) Load() (*Config, error) {
	// Set up config file path
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		// Try multiple locations
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// Check ~/.opsbook/config.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		// Check ~/.opsbook.yaml
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	// Set environment variable support
	m.viper.SetEnvPrefix("OPSBOOK")
	m.viper.AutomaticEnv()

	// Initialize config to ensure defaults are set even for empty configs
	m.config = &Config{}

	// Read config file
	if err := m.viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults
		// Check for both ConfigFileNotFoundError and os.IsNotExist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// File doesn't exist, apply defaults and return
		m.applyDefaults()
		return m.config, nil
	}

	// Unmarshal into config struct
	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults
	m.applyDefaults()

	return m.config, nil
}

// Save saves the current configuration to file
func (m *Manager) Save() error {
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		configDir := filepath.Join(home, defaultConfigDir)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		m.configPath = filepath.Join(configDir, "config.yaml")
	}

	// Ensure directory exists
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config to file
	if err := m.viper.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// applyDefaults sets default values for configuration
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	// Set default timeout
	if m.config.Defaults.Timeout == 0 {
		m.config.Defaults.Timeout = 15 * time.Second
	}

	// Set default fork count
	if m.config.Defaults.Forks == 0 {
		m.config.Defaults.Forks = 5
	}
}
