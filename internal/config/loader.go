package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is looked up in the current directory.
	DefaultConfigFile = ".offmirror.yaml"

	// UserConfigFile is looked up in XDGConfigDir().
	UserConfigFile = "config.yaml"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a YAML configuration file. A missing file yields
// ErrConfigNotFound; unknown keys are rejected so typos do not pass silently.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	var cf File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in this order:
//  1. configPath, when given
//  2. .offmirror.yaml in the current directory
//  3. config.yaml in XDGConfigDir()
//
// It returns "" when none exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	userConfig := filepath.Join(XDGConfigDir(), UserConfigFile)
	if _, err := os.Stat(userConfig); err == nil {
		return userConfig
	}

	return ""
}
