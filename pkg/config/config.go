package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory
const FileName = "kpi-graph.toml"

// EnvPrefix prefixes every environment override, e.g. KPI_GRAPH_PORT=9090
const EnvPrefix = "KPI_GRAPH_"

// Config holds all configuration for the application
type Config struct {
	Seed             string  `koanf:"seed"`
	WebMode          bool    `koanf:"web"`
	Port             int     `koanf:"port"`
	Watch            bool    `koanf:"watch"`
	MaxDepth         int     `koanf:"max-depth"`
	BalanceTolerance float64 `koanf:"balance-tolerance"`
	Verbosity        string  `koanf:"verbosity"`
	VerboseCnt       int     `koanf:"verbose"`
	LogJSON          bool    `koanf:"log-json"`
	Kpi              string  `koanf:"kpi"`  // Console mode: print paths and influence for this KPI
	Root             string  `koanf:"root"` // Console mode: print only this tree
}

// Defaults returns the built-in configuration values
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"seed":              "",
		"web":               false,
		"port":              8080,
		"watch":             false,
		"max-depth":         5,
		"balance-tolerance": 0.01,
		"verbosity":         "",
		"verbose":           0,
		"log-json":          false,
		"kpi":               "",
		"root":              "",
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(FileName, f)
}

// LoadFile is Load with an explicit config file path
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional). A missing file is fine, a broken one is not.
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	// 3. Environment variables. Underscores map to dashes so that
	// KPI_GRAPH_MAX_DEPTH sets max-depth.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max-depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.BalanceTolerance < 0 {
		return fmt.Errorf("balance-tolerance must not be negative, got %g", c.BalanceTolerance)
	}
	if c.Watch && c.Seed == "" {
		return fmt.Errorf("--watch requires --seed")
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
