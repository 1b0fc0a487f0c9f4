package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the application configuration loaded from file, env and flags.
type Config struct {
	Ontology OntologyConfig `yaml:"ontology" mapstructure:"ontology"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
}

// OntologyConfig locates the authoritative technique id source.
type OntologyConfig struct {
	Path     string   `yaml:"path" mapstructure:"path"`
	RootKey  string   `yaml:"root_key" mapstructure:"root_key"`
	IDFields []string `yaml:"id_fields" mapstructure:"id_fields"`
}

// RulesConfig locates the heuristic rule document.
type RulesConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and locates the item store.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// BatchConfig tunes batch classification runs.
type BatchConfig struct {
	MaxItems        int     `yaml:"max_items" mapstructure:"max_items"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
	WritesPerSecond float64 `yaml:"writes_per_second" mapstructure:"writes_per_second"`
	Burst           int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls how long loaded configuration stays cached. Zero keeps
// entries until explicitly invalidated.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// Address returns host:port for listening.
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Ontology: OntologyConfig{
			Path:     "data/techniques.json",
			RootKey:  "technieken",
			IDFields: []string{"nummer"},
		},
		Rules: RulesConfig{
			Path: "data/rag_heuristics.json",
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "techtag.db",
		},
		Batch: BatchConfig{
			MaxItems: 500,
			Workers:  runtime.NumCPU(),
			Burst:    10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// ApplyDefaults fills zero values left by partial config files.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Ontology.Path == "" {
		c.Ontology.Path = d.Ontology.Path
	}
	if c.Ontology.RootKey == "" {
		c.Ontology.RootKey = d.Ontology.RootKey
	}
	if len(c.Ontology.IDFields) == 0 {
		c.Ontology.IDFields = d.Ontology.IDFields
	}
	if c.Rules.Path == "" {
		c.Rules.Path = d.Rules.Path
	}
	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Batch.MaxItems <= 0 {
		c.Batch.MaxItems = d.Batch.MaxItems
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = d.Batch.Workers
	}
	if c.Batch.Burst <= 0 {
		c.Batch.Burst = d.Batch.Burst
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.API.Host == "" {
		c.API.Host = d.API.Host
	}
	if c.API.Port == 0 {
		c.API.Port = d.API.Port
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if c.Batch.WritesPerSecond < 0 {
		return fmt.Errorf("batch.writes_per_second must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}
