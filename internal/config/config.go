package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tiMaxal/pairs3d/internal/db"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	WatchRoot       string  `yaml:"watch_root"        json:"watch_root"`
	Recurse         bool    `yaml:"recurse"           json:"recurse"`
	Schedule        string  `yaml:"schedule"          json:"schedule"`
	TimeDeltaMaxSec float64 `yaml:"time_delta_max_seconds" json:"time_delta_max_seconds"`
	HashDistanceMax int     `yaml:"hash_distance_max" json:"hash_distance_max"`
	BatchSize       int     `yaml:"batch_size"        json:"batch_size"`
	HashWorkers     int     `yaml:"hash_workers"      json:"hash_workers"`
	DBPath          string  `yaml:"db_path"           json:"-"`
	HTTPAddr        string  `yaml:"http_addr"         json:"-"`
	LogLevel        string  `yaml:"log_level"         json:"-"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
// Threshold defaults match the original tool: 2 seconds and 10 bits.
func (c *Config) applyDefaults() {
	if c.TimeDeltaMaxSec == 0 {
		c.TimeDeltaMaxSec = 2
	}
	if c.HashDistanceMax == 0 {
		c.HashDistanceMax = 10
	}
	if c.BatchSize == 0 {
		c.BatchSize = 25
	}
	if c.HashWorkers == 0 {
		c.HashWorkers = 4
	}
	if c.DBPath == "" {
		c.DBPath = "pairs3d.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// TimeDeltaMax returns the timestamp window as a duration.
func (c *Config) TimeDeltaMax() time.Duration {
	return time.Duration(c.TimeDeltaMaxSec * float64(time.Second))
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the
// daemon can start without one.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// MergeDBSettings overlays settings remembered from previous runs on
// top of the file config: last sorted folder, recursion flag, and both
// thresholds. Unknown keys are silently ignored.
func MergeDBSettings(cfg *Config, settings map[string]string) {
	if v, ok := settings[db.SettingLastRoot]; ok && v != "" {
		cfg.WatchRoot = v
	}
	if v, ok := settings[db.SettingRecurse]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recurse = b
		}
	}
	if v, ok := settings[db.SettingTimeDeltaMaxMs]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.TimeDeltaMaxSec = float64(ms) / 1000
		}
	}
	if v, ok := settings[db.SettingHashDistanceMax]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HashDistanceMax = n
		}
	}
}
