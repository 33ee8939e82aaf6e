package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cliState is the small amount of state the CLI persists between runs.
type cliState struct {
	DefaultProvider string `yaml:"default_provider,omitempty"`
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tierroute", name)
	}
	return filepath.Join(home, ".tierroute", name)
}

// loadState reads the state file. A missing file is an empty state.
func loadState(path string) (cliState, error) {
	var st cliState
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse state %s: %w", path, err)
	}
	return st, nil
}

// saveState writes the state file atomically.
func saveState(path string, st cliState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
