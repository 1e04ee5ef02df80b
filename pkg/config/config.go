// Package config handles configuration for the graph storage engine via
// environment variables, with an optional YAML file that overrides
// individual settings. All environment variables are prefixed with
// GRAPHANNIS_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/graphannis-go/graphannis/pkg/updatelog"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the graph storage engine needs at
// startup: where its data lives, how durable writes should be, and the
// thresholds the optimize heuristic uses to pick a component's storage
// implementation.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	WAL      WALConfig      `yaml:"wal"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig controls where a Graph's on-disk directory lives.
type DatabaseConfig struct {
	// DataDir is the directory a Graph is opened against.
	DataDir string `yaml:"data_dir"`
}

// WALConfig holds the update-log durability setting. graph.New and
// graph.Open do not read it; they always open the log with
// updatelog.SyncImmediate.
type WALConfig struct {
	// SyncMode is one of "immediate", "batch", or "none" (updatelog.SyncMode).
	SyncMode string `yaml:"sync_mode"`
}

// OptimizeConfig holds the node budget that corresponds to
// graphstorage.OptimizeHeuristicThresholds.MaxNodesForDiskBadger. A
// Graph does not read it and uses
// graphstorage.DefaultOptimizeHeuristicThresholds.
type OptimizeConfig struct {
	// MaxNodesForDiskBadger is the node-count budget above which a
	// component is moved to the disk-backed adjacency storage.
	MaxNodesForDiskBadger int64 `yaml:"max_nodes_for_disk_badger"`
}

// LoggingConfig holds a log verbosity level; no package of this module
// reads it.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
}

// Default returns a Config populated with the engine's built-in
// defaults, used as the base LoadFromEnv and LoadFromYAML apply on top
// of.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{DataDir: "./data"},
		WAL:      WALConfig{SyncMode: "immediate"},
		Optimize: OptimizeConfig{MaxNodesForDiskBadger: 5_000_000},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// LoadFromEnv loads configuration from GRAPHANNIS_* environment
// variables, starting from Default() so any variable left unset keeps
// its built-in value.
func LoadFromEnv() *Config {
	c := Default()
	c.Database.DataDir = getEnv("GRAPHANNIS_DATA_DIR", c.Database.DataDir)
	c.WAL.SyncMode = getEnv("GRAPHANNIS_WAL_SYNC_MODE", c.WAL.SyncMode)
	c.Optimize.MaxNodesForDiskBadger = getEnvInt64("GRAPHANNIS_OPTIMIZE_MAX_NODES_DISK", c.Optimize.MaxNodesForDiskBadger)
	c.Logging.Level = getEnv("GRAPHANNIS_LOG_LEVEL", c.Logging.Level)
	return c
}

// LoadFromYAML reads path and merges it over base, with any field
// present in the YAML document overriding base's value for that
// field. A nil base is treated as Default(). Passing a path to a file
// that does not exist is not an error -- base is returned unchanged, so
// callers can always pass an optional "graphannis.yaml" without first
// checking it exists.
func LoadFromYAML(path string, base *Config) (*Config, error) {
	if base == nil {
		base = Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return nil, err
	}
	merged := *base
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// SyncModeDuration is the fixed batching interval used when
// WAL.SyncMode is "batch" (mirrors updatelog.BatchSyncInterval; kept
// here too so callers that only import config don't need updatelog).
const SyncModeDuration = 200 * time.Millisecond

// ParseSyncMode converts the WAL.SyncMode string into an
// updatelog.SyncMode. An empty value maps to SyncImmediate; an unknown
// value returns SyncImmediate together with an error.
func ParseSyncMode(s string) (updatelog.SyncMode, error) {
	switch s {
	case "", "immediate":
		return updatelog.SyncImmediate, nil
	case "batch":
		return updatelog.SyncBatch, nil
	case "none":
		return updatelog.SyncNone, nil
	default:
		return updatelog.SyncImmediate, fmt.Errorf("config: unknown wal sync mode %q", s)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
