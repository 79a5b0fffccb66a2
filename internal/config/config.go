// Package config loads the runtime configuration: allocator sizing,
// audit toggles, log verbosity, and the metrics endpoint. Files are
// YAML; defaults are applied before unmarshal so absent keys keep their
// documented values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/limitly-lang/limitly/internal/allocator"
)

// Config is the top-level configuration.
type Config struct {
	Allocator AllocatorConfig `yaml:"allocator"`
	Regions   RegionsConfig   `yaml:"regions"`
	Audit     AuditConfig     `yaml:"audit"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AllocatorConfig selects and sizes the allocator.
type AllocatorConfig struct {
	// Kind is one of system, pooled, arena.
	Kind        string   `yaml:"kind"`
	PoolSizes   []uint64 `yaml:"pool_sizes,omitempty"`
	ChunkBlocks uint64   `yaml:"chunk_blocks,omitempty"`
	ArenaSize   uint64   `yaml:"arena_size,omitempty"`
	MemoryLimit uint64   `yaml:"memory_limit,omitempty"`
	Alignment   uint64   `yaml:"alignment,omitempty"`
}

// RegionsConfig lists regions opened at startup.
type RegionsConfig struct {
	Preopen []string `yaml:"preopen,omitempty"`
}

// AuditConfig controls allocation auditing.
type AuditConfig struct {
	Enabled   bool `yaml:"enabled"`
	LeakCheck bool `yaml:"leak_check"`
}

// LogConfig controls log verbosity. Level is one of none, notice,
// info, debug.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Allocator: AllocatorConfig{
			Kind:        "pooled",
			PoolSizes:   []uint64{8, 16, 32, 64, 128, 256},
			ChunkBlocks: 1024,
			ArenaSize:   64 * 1024 * 1024,
			MemoryLimit: 1024 * 1024 * 1024,
			Alignment:   8,
		},
		Audit: AuditConfig{
			Enabled:   false,
			LeakCheck: true,
		},
		Log: LogConfig{
			Level: "notice",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "localhost:9187",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return Parse(data, path)
}

// Parse unmarshals YAML over the defaults and validates the result.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate(path string) error {
	switch c.Allocator.Kind {
	case "system", "pooled", "arena":
	default:
		return fmt.Errorf("%s: allocator.kind %q is not one of system, pooled, arena", path, c.Allocator.Kind)
	}

	var prev uint64
	for i, size := range c.Allocator.PoolSizes {
		if size == 0 {
			return fmt.Errorf("%s: allocator.pool_sizes[%d] must be non-zero", path, i)
		}
		if size <= prev {
			return fmt.Errorf("%s: allocator.pool_sizes must be strictly ascending", path)
		}
		prev = size
	}

	if a := c.Allocator.Alignment; a != 0 && a&(a-1) != 0 {
		return fmt.Errorf("%s: allocator.alignment %d is not a power of two", path, a)
	}

	switch c.Log.Level {
	case "none", "notice", "info", "debug":
	default:
		return fmt.Errorf("%s: log.level %q is not one of none, notice, info, debug", path, c.Log.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("%s: metrics.address is required when metrics are enabled", path)
	}

	seen := make(map[string]bool, len(c.Regions.Preopen))
	for _, name := range c.Regions.Preopen {
		if name == "" {
			return fmt.Errorf("%s: regions.preopen entries must be non-empty", path)
		}
		if seen[name] {
			return fmt.Errorf("%s: regions.preopen names region %q twice", path, name)
		}
		seen[name] = true
	}

	return nil
}

// AllocatorKind maps the configured kind onto the allocator package.
func (c *Config) AllocatorKind() allocator.AllocatorKind {
	switch c.Allocator.Kind {
	case "system":
		return allocator.SystemAllocatorKind
	case "arena":
		return allocator.ArenaAllocatorKind
	default:
		return allocator.DefaultAllocatorKind
	}
}

// AllocatorOptions builds the option list for allocator.New.
func (c *Config) AllocatorOptions() []allocator.Option {
	opts := []allocator.Option{
		allocator.WithAudit(c.Audit.Enabled),
		allocator.WithLeakCheck(c.Audit.LeakCheck),
	}
	if len(c.Allocator.PoolSizes) > 0 {
		sizes := make([]uintptr, len(c.Allocator.PoolSizes))
		for i, s := range c.Allocator.PoolSizes {
			sizes[i] = uintptr(s)
		}
		opts = append(opts, allocator.WithPoolSizes(sizes))
	}
	if c.Allocator.ChunkBlocks != 0 {
		opts = append(opts, allocator.WithChunkBlocks(uintptr(c.Allocator.ChunkBlocks)))
	}
	if c.Allocator.ArenaSize != 0 {
		opts = append(opts, allocator.WithArenaSize(uintptr(c.Allocator.ArenaSize)))
	}
	if c.Allocator.MemoryLimit != 0 {
		opts = append(opts, allocator.WithMemoryLimit(uintptr(c.Allocator.MemoryLimit)))
	}
	if c.Allocator.Alignment != 0 {
		opts = append(opts, allocator.WithAlignment(uintptr(c.Allocator.Alignment)))
	}

	return opts
}

// Verbosity maps the log level onto the commonlog scale, where 0 logs
// notice and above and each step adds a level.
func (c *Config) Verbosity() int {
	switch c.Log.Level {
	case "none":
		return -1
	case "info":
		return 1
	case "debug":
		return 2
	default:
		return 0
	}
}
