// Package config defines the on-disk runtime configuration and free-form
// per-agent settings. Files load from YAML or JSON; missing values fall
// back to runtime defaults.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentrt/agentrt/pkg/agentrt/agent"
)

// Default values applied by ApplyDefaults.
const (
	DefaultHistorySize       = 1000
	DefaultRequestTimeout    = 30 * time.Second
	DefaultDeadLetterMaxSize = 1000
	DefaultMaxRetries        = 3
	DefaultReplayInterval    = 10 * time.Second
)

// File is the top-level runtime configuration.
type File struct {
	Bus      BusSettings    `json:"bus" yaml:"bus"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Replayer ReplaySettings `json:"replayer" yaml:"replayer"`
	Agents   []AgentEntry   `json:"agents" yaml:"agents"`
}

// BusSettings configures the event bus.
type BusSettings struct {
	// HistorySize bounds the in-memory event history.
	HistorySize int `json:"history_size" yaml:"history_size"`

	// RequestTimeout is the default request/reply timeout.
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	// DeadLetterMaxSize bounds the dead letter store.
	DeadLetterMaxSize int `json:"dead_letter_max_size" yaml:"dead_letter_max_size"`

	// MaxRetries caps dead letter redelivery attempts per event.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// JournalConfig selects the event journal backend.
type JournalConfig struct {
	// Driver is "memory", "sqlite", or empty for no journal.
	Driver string `json:"driver" yaml:"driver"`

	// Path is the database file for the sqlite driver.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ReplaySettings configures background dead letter redelivery.
type ReplaySettings struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
}

// AgentEntry declares one agent in the configuration file. It mirrors
// agent.Config with file-friendly duration handling, plus free-form
// settings the concrete agent interprets itself.
type AgentEntry struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tier         string   `json:"tier,omitempty" yaml:"tier,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Enabled      *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	TickRate     Duration `json:"tick_rate,omitempty" yaml:"tick_rate,omitempty"`
	CronSpec     string   `json:"cron_spec,omitempty" yaml:"cron_spec,omitempty"`

	Settings Values `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// AgentConfig converts the entry to an agent registration config.
func (e AgentEntry) AgentConfig() agent.Config {
	return agent.Config{
		ID:           e.ID,
		Name:         e.Name,
		Tier:         e.Tier,
		Description:  e.Description,
		Version:      e.Version,
		Dependencies: e.Dependencies,
		Enabled:      e.Enabled,
		TickRate:     e.TickRate.Std(),
		CronSpec:     e.CronSpec,
	}
}

// Duration unmarshals from a duration string ("250ms", "30s") or a bare
// number of seconds, in both YAML and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.decode(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.decode(raw)
}

func (d *Duration) decode(raw any) error {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case int64:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Values is a free-form settings map with typed accessors. Accessors
// return the default when the key is missing or the value cannot be
// converted.
type Values map[string]any

// String returns the string value for key.
func (v Values) String(key, defaultVal string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key.
func (v Values) Bool(key string, defaultVal bool) bool {
	if b, ok := v[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key. Floats convert only when they
// carry no fractional part.
func (v Values) Int(key string, defaultVal int) int {
	switch val := v[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key.
func (v Values) Float(key string, defaultVal float64) float64 {
	switch val := v[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Duration returns the duration value for key. Strings parse with
// time.ParseDuration; bare numbers mean seconds.
func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := v[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	case time.Duration:
		return val
	}
	return defaultVal
}

// StringSlice returns the string slice for key. A []any converts only
// when every element is a string.
func (v Values) StringSlice(key string, defaultVal []string) []string {
	switch val := v[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			out = append(out, s)
		}
		return out
	}
	return defaultVal
}

// Has reports whether key exists.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}
