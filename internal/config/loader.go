package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".deepcheck"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .deepcheck configuration file.
type File struct {
	// Analysis overrides the built-in analysis settings. Keys that are
	// absent keep their default value.
	Analysis Analysis `yaml:"analysis"`

	// Database configures the history store.
	Database DatabaseFile `yaml:"database,omitempty"`

	// Server configures the serve command.
	Server ServerFile `yaml:"server,omitempty"`
}

// DatabaseFile is the database section of the configuration file.
type DatabaseFile struct {
	Dir      string `yaml:"dir,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// ServerFile is the server section of the configuration file.
type ServerFile struct {
	Listen string `yaml:"listen,omitempty"`
}

// LoadConfigFile loads the YAML configuration file at path on top of the
// built-in defaults. If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	return ParseConfigFile(data)
}

// ParseConfigFile decodes configuration file contents on top of the built-in
// defaults and validates the result.
func ParseConfigFile(data []byte) (*File, error) {
	cf := File{Analysis: DefaultAnalysis()}
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if err := cf.Analysis.Validate(); err != nil {
		return nil, err
	}

	return &cf, nil
}

// Apply copies the file settings into cfg.
func (cf *File) Apply(cfg *Config) {
	cfg.Analysis = cf.Analysis.Clone()
	if cf.Database.Dir != "" {
		cfg.DBDir = cf.Database.Dir
	}
	if cf.Database.Disabled {
		cfg.SaveToDB = false
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .deepcheck in the current directory
// 3. Look for .deepcheck in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
