// Package config provides a unified configuration system for skein
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skein runtime configuration
type Config struct {
	// Scheduler configuration
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Event queue configuration
	Events EventConfig `yaml:"events" json:"events"`

	// Indexer configuration
	Indexer IndexerConfig `yaml:"indexer" json:"indexer"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metadata
	Version string `yaml:"version" json:"version"`
	Profile string `yaml:"profile" json:"profile"`
}

// SchedulerConfig contains evaluation queue settings
type SchedulerConfig struct {
	// Number of scheduling priorities the queue is partitioned into
	Priorities int `yaml:"priorities" json:"priorities"`

	// Maximum evaluations per time slice before control is returned
	MaxEvaluationsPerSlice int `yaml:"max_evaluations_per_slice" json:"max_evaluations_per_slice"`

	// Wall-clock budget for one RunQueue slice (0 = no deadline)
	SliceDeadline time.Duration `yaml:"slice_deadline" json:"slice_deadline"`

	// Number of low-watermark rewinds in one cycle after which an
	// advisory warning is logged (0 = off)
	QueueResetWarn int `yaml:"queue_reset_warn" json:"queue_reset_warn"`
}

// EventConfig contains event queue settings
type EventConfig struct {
	// Coalesce continuous pointer events (mousemove and friends)
	Coalesce bool `yaml:"coalesce" json:"coalesce"`

	// Maximum number of queued events before enqueue refuses
	MaxQueued int `yaml:"max_queued" json:"max_queued"`
}

// IndexerConfig contains indexer settings
type IndexerConfig struct {
	// Interpret string keys as ordered (linear sub-index) by default
	AlphabeticRanges bool `yaml:"alphabetic_ranges" json:"alphabetic_ranges"`

	// Initial capacity hint for per-path node tables
	NodeTableCapacity int `yaml:"node_table_capacity" json:"node_table_capacity"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Debug       bool `yaml:"debug" json:"debug" env:"SKEIN_DEBUG"`
	Trace       bool `yaml:"trace" json:"trace" env:"SKEIN_TRACE"`
	EnableColor bool `yaml:"enable_color" json:"enable_color"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Priorities:             4,
			MaxEvaluationsPerSlice: 5000,
			SliceDeadline:          0,
			QueueResetWarn:         0,
		},
		Events: EventConfig{
			Coalesce:  true,
			MaxQueued: 1000,
		},
		Indexer: IndexerConfig{
			AlphabeticRanges:  false,
			NodeTableCapacity: 64,
		},
		Logging: LoggingConfig{
			Debug:       false,
			Trace:       false,
			EnableColor: true,
		},
		Profile: "default",
	}
}

// Profiles returns the named built-in profiles.
// "testing" trades slice budgets for determinism; "throughput" raises
// the per-slice budget for batch loads.
func Profiles() map[string]*Config {
	testing := DefaultConfig()
	testing.Profile = "testing"
	testing.Scheduler.MaxEvaluationsPerSlice = 1 << 30
	testing.Events.MaxQueued = 1 << 20

	throughput := DefaultConfig()
	throughput.Profile = "throughput"
	throughput.Scheduler.MaxEvaluationsPerSlice = 50000
	throughput.Events.Coalesce = true

	return map[string]*Config{
		"default":    DefaultConfig(),
		"testing":    testing,
		"throughput": throughput,
	}
}

// LoadProfile returns a copy of the named profile configuration
func LoadProfile(name string) (*Config, error) {
	if c, ok := Profiles()[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown configuration profile %q", name)
}

// LoadFromFile reads a YAML configuration file over the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv applies environment variable overrides
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SKEIN_DEBUG"); v != "" {
		c.Logging.Debug = envBool(v)
	}
	if v := os.Getenv("SKEIN_TRACE"); v != "" {
		c.Logging.Trace = envBool(v)
	}
	if v := os.Getenv("SKEIN_PRIORITIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scheduler.Priorities = n
		}
	}
	if v := os.Getenv("SKEIN_MAX_EVALUATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scheduler.MaxEvaluationsPerSlice = n
		}
	}
}

func envBool(v string) bool {
	return v != "" && v != "0" && v != "false"
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Scheduler.Priorities < 1 {
		return fmt.Errorf("scheduler.priorities must be at least 1, got %d", c.Scheduler.Priorities)
	}
	if c.Scheduler.MaxEvaluationsPerSlice < 1 {
		return fmt.Errorf("scheduler.max_evaluations_per_slice must be at least 1, got %d", c.Scheduler.MaxEvaluationsPerSlice)
	}
	if c.Events.MaxQueued < 1 {
		return fmt.Errorf("events.max_queued must be at least 1, got %d", c.Events.MaxQueued)
	}
	if c.Indexer.NodeTableCapacity < 0 {
		return fmt.Errorf("indexer.node_table_capacity must not be negative, got %d", c.Indexer.NodeTableCapacity)
	}
	return nil
}

// Current returns the process-wide configuration, defaulting lazily
func Current() *Config {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = DefaultConfig()
		current.ApplyEnv()
	}
	return current
}

// SetCurrent replaces the process-wide configuration
func SetCurrent(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}
