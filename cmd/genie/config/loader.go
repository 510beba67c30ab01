// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvBaseURL     = "GENIE_BASE_URL"
	EnvPersonality = "GENIE_PERSONALITY"
	EnvConfigPath  = "GENIE_CONFIG"
)

var (
	// Global is a singleton instance
	Global GenieConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		var cfg GenieConfig
		cfg, err = LoadFrom(Path())
		if err == nil {
			Global = cfg
		}
	})
	return err
}

// Path is the config file location: $GENIE_CONFIG, or ~/.genie/genie.yaml.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(Dir(), "genie.yaml")
}

// LoadFrom reads, overrides and validates the config at configPath,
// creating it with defaults when it does not exist. Keys missing from the
// file keep their default values.
func LoadFrom(configPath string) (GenieConfig, error) {
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, " First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return GenieConfig{}, err
		}
	}
	// read the file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return GenieConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return GenieConfig{}, fmt.Errorf("failed to parse the config file %s: %w", configPath, err)
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return GenieConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg GenieConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *GenieConfig) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv(EnvPersonality); v != "" {
		cfg.UI.Personality = v
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
