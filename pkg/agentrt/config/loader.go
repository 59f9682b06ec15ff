package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a configuration file, auto-detecting the format by
// extension (.yaml, .yml, .json), applies defaults, and validates it.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return File{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// ParseYAML parses YAML configuration, applies defaults, and validates.
func ParseYAML(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse yaml: %w", err)
	}
	return finish(f)
}

// ParseJSON parses JSON configuration, applies defaults, and validates.
func ParseJSON(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse json: %w", err)
	}
	return finish(f)
}

func finish(f File) (File, error) {
	f.ApplyDefaults()
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// ApplyDefaults fills zero-valued fields with runtime defaults.
func (f *File) ApplyDefaults() {
	if f.Bus.HistorySize == 0 {
		f.Bus.HistorySize = DefaultHistorySize
	}
	if f.Bus.RequestTimeout == 0 {
		f.Bus.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if f.Bus.DeadLetterMaxSize == 0 {
		f.Bus.DeadLetterMaxSize = DefaultDeadLetterMaxSize
	}
	if f.Bus.MaxRetries == 0 {
		f.Bus.MaxRetries = DefaultMaxRetries
	}
	if f.Replayer.PollInterval == 0 {
		f.Replayer.PollInterval = Duration(DefaultReplayInterval)
	}
}

// Validate checks the configuration for internal consistency.
func (f File) Validate() error {
	if f.Bus.HistorySize < 0 {
		return fmt.Errorf("bus.history_size must not be negative, got %d", f.Bus.HistorySize)
	}
	if f.Bus.RequestTimeout < 0 {
		return fmt.Errorf("bus.request_timeout must not be negative")
	}

	switch f.Journal.Driver {
	case "", "memory":
	case "sqlite":
		if f.Journal.Path == "" {
			return fmt.Errorf("journal.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown journal driver %q", f.Journal.Driver)
	}

	seen := make(map[string]bool, len(f.Agents))
	for i, entry := range f.Agents {
		if entry.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if seen[entry.ID] {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, entry.ID)
		}
		seen[entry.ID] = true
		for _, dep := range entry.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("agents[%d]: %s depends on %s, which must be declared first", i, entry.ID, dep)
			}
		}
	}
	return nil
}
