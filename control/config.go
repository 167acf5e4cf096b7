// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Dispatcher configuration: TOML file format, validation, and a thread-safe
// store that propagates reloads to registered listeners.

package control

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/core/dispatcher"
)

// Config holds the tunable dispatcher parameters.
type Config struct {
	// Pool sizing. thread_count 0 means GOMAXPROCS capped by pool_capacity.
	ThreadCount  int `toml:"thread_count"`
	PoolCapacity int `toml:"pool_capacity"`

	// Worker thread attributes
	StackSize          int  `toml:"stack_size"`
	Priority           int  `toml:"priority"` // nice value, -20..19
	SeparateMainThread bool `toml:"separate_main_thread"`
	PinThreads         bool `toml:"pin_threads"`

	// Checkpoint/restore
	Resizable             bool `toml:"resizable"`
	CheckpointThreadCount int  `toml:"checkpoint_thread_count"`

	// Observability
	HistorySize int  `toml:"history_size"`
	Verbose     bool `toml:"verbose"`
}

// DefaultConfig returns a resizable pool sized from GOMAXPROCS.
func DefaultConfig() Config {
	return Config{
		ThreadCount:           0,
		PoolCapacity:          0,
		Resizable:             true,
		CheckpointThreadCount: 1,
		HistorySize:           64,
	}
}

// Validate rejects values the dispatcher cannot be built from.
func (c Config) Validate() error {
	invalid := func(field string, value any, why string) error {
		return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("config: %s %s", field, why)).
			Wrap(api.ErrInvalidArgument).
			WithContext(field, value)
	}
	switch {
	case c.ThreadCount < 0:
		return invalid("thread_count", c.ThreadCount, "must not be negative")
	case c.PoolCapacity < 0:
		return invalid("pool_capacity", c.PoolCapacity, "must not be negative")
	case c.PoolCapacity > 0 && c.ThreadCount > c.PoolCapacity:
		return invalid("thread_count", c.ThreadCount, "exceeds pool_capacity")
	case c.StackSize < 0:
		return invalid("stack_size", c.StackSize, "must not be negative")
	case c.Priority < -20 || c.Priority > 19:
		return invalid("priority", c.Priority, "must be within -20..19")
	case c.CheckpointThreadCount < 0:
		return invalid("checkpoint_thread_count", c.CheckpointThreadCount, "must not be negative")
	case c.HistorySize < 0:
		return invalid("history_size", c.HistorySize, "must not be negative")
	}
	return nil
}

// Options maps the configuration onto dispatcher options.
func (c Config) Options(logger *log.Logger) dispatcher.Options {
	return dispatcher.Options{
		ThreadCount:        c.ThreadCount,
		Capacity:           c.PoolCapacity,
		StackSize:          c.StackSize,
		Priority:           c.Priority,
		PinThreads:         c.PinThreads,
		SeparateMainThread: c.SeparateMainThread,
		Resizable:          c.Resizable,
		Logger:             logger,
		Verbose:            c.Verbose,
	}
}

// LoadConfig reads a TOML file. A missing file yields the defaults; keys
// absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML, creating the directory if needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

// ConfigStore keeps the current configuration and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(old, updated Config)
}

// NewConfigStore initializes a store holding cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{
		config:    cfg,
		listeners: make([]func(old, updated Config), 0),
	}
}

// GetSnapshot returns the current configuration.
func (cs *ConfigStore) GetSnapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// SetConfig validates and installs cfg, then runs the reload listeners on the
// caller's goroutine. An unchanged configuration notifies nobody.
func (cs *ConfigStore) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	old := cs.config
	if old == cfg {
		cs.mu.Unlock()
		return nil
	}
	cs.config = cfg
	listeners := append([]func(old, updated Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(old, cfg)
	}
	return nil
}

// OnReload registers a listener called after every accepted change.
func (cs *ConfigStore) OnReload(fn func(old, updated Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
