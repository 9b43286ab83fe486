package config

import "time"

// Config represents the opsbook configuration file structure
type Config struct {
	// Inventory is the default inventory file path
	Inventory string `yaml:"inventory,omitempty" json:"inventory,omitempty"`

	// Defaults contains default settings for playbook runs
	Defaults DefaultsConfig `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Connection contains default connection settings for remote hosts
	Connection ConnectionConfig `yaml:"connection,omitempty" json:"connection,omitempty"`

	// Retry controls retry file generation after failed runs
	Retry RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// Timeout for remote operations
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Forks is the number of hosts contacted concurrently
	Forks int `yaml:"forks,omitempty" json:"forks,omitempty"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}

// ConnectionConfig contains default remote connection settings
type ConnectionConfig struct {
	// RemoteUser is the user to connect as
	RemoteUser string `yaml:"remoteUser,omitempty" json:"remoteUser,omitempty"`

	// PrivateKeyFile is the SSH private key used for authentication
	PrivateKeyFile string `yaml:"privateKeyFile,omitempty" json:"privateKeyFile,omitempty"`
}

// RetryConfig controls where retry files are written
type RetryConfig struct {
	// Enabled turns retry file generation on
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// SavePath overrides the directory retry files are written to.
	// When empty, retry files land next to the playbook.
	SavePath string `yaml:"savePath,omitempty" json:"savePath,omitempty"`
}
