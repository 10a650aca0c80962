// Package config loads yomigana settings from TOML, YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/japaniel/yomigana/pkg/mastery"
)

// Config is the full application configuration.
type Config struct {
	Analyzer   AnalyzerConfig   `toml:"analyzer" json:"analyzer" yaml:"analyzer"`
	Cache      CacheConfig      `toml:"cache" json:"cache" yaml:"cache"`
	Tracker    TrackerConfig    `toml:"tracker" json:"tracker" yaml:"tracker"`
	Mastery    MasteryConfig    `toml:"mastery" json:"mastery" yaml:"mastery"`
	Storage    StorageConfig    `toml:"storage" json:"storage" yaml:"storage"`
	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`
	Logging    LoggingConfig    `toml:"logging" json:"logging" yaml:"logging"`
}

// AnalyzerConfig selects the morphological analyzer.
type AnalyzerConfig struct {
	// Enabled false skips the probe and runs in fallback mode.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	// Dictionary is the kagome dictionary: "ipa" or "uni".
	Dictionary string `toml:"dictionary" json:"dictionary" yaml:"dictionary"`
	// TimeoutMs bounds each analyzer call.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
	// InitTimeoutMs bounds loading the analyzer dictionary.
	InitTimeoutMs int `toml:"init_timeout_ms" json:"init_timeout_ms" yaml:"init_timeout_ms"`
}

// CacheConfig sizes the tokenization cache.
type CacheConfig struct {
	Size int `toml:"size" json:"size" yaml:"size"`
}

// TrackerConfig controls usage batching.
type TrackerConfig struct {
	UserID          string `toml:"user_id" json:"user_id" yaml:"user_id"`
	FlushIntervalMs int    `toml:"flush_interval_ms" json:"flush_interval_ms" yaml:"flush_interval_ms"`
	Capacity        int    `toml:"capacity" json:"capacity" yaml:"capacity"`
	WriteTimeoutMs  int    `toml:"write_timeout_ms" json:"write_timeout_ms" yaml:"write_timeout_ms"`
}

// MasteryConfig is the tunable mastery policy.
type MasteryConfig struct {
	MasteredMinTotal int     `toml:"mastered_min_total" json:"mastered_min_total" yaml:"mastered_min_total"`
	MasteredMinRatio float64 `toml:"mastered_min_ratio" json:"mastered_min_ratio" yaml:"mastered_min_ratio"`
	FamiliarMinTotal int     `toml:"familiar_min_total" json:"familiar_min_total" yaml:"familiar_min_total"`
	FamiliarMinRatio float64 `toml:"familiar_min_ratio" json:"familiar_min_ratio" yaml:"familiar_min_ratio"`
	LearningMinTotal int     `toml:"learning_min_total" json:"learning_min_total" yaml:"learning_min_total"`

	NewReviewHours      int `toml:"new_review_hours" json:"new_review_hours" yaml:"new_review_hours"`
	LearningReviewHours int `toml:"learning_review_hours" json:"learning_review_hours" yaml:"learning_review_hours"`
	FamiliarReviewHours int `toml:"familiar_review_hours" json:"familiar_review_hours" yaml:"familiar_review_hours"`
	MasteredReviewHours int `toml:"mastered_review_hours" json:"mastered_review_hours" yaml:"mastered_review_hours"`

	UserWeight  float64 `toml:"user_weight" json:"user_weight" yaml:"user_weight"`
	AgentWeight float64 `toml:"agent_weight" json:"agent_weight" yaml:"agent_weight"`
}

// StorageConfig locates the sqlite database.
type StorageConfig struct {
	Path string `toml:"path" json:"path" yaml:"path"`
}

// DictionaryConfig locates the JMdict file.
type DictionaryConfig struct {
	Path         string `toml:"path" json:"path" yaml:"path"`
	AutoDownload bool   `toml:"auto_download" json:"auto_download" yaml:"auto_download"`
}

// LoggingConfig sets log level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// DataDir returns the directory for the database and dictionary.
func DataDir() string {
	if dir := os.Getenv("YOMIGANA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".yomigana"
	}
	return filepath.Join(home, ".yomigana")
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	p := mastery.DefaultPolicy()
	dir := DataDir()
	return &Config{
		Analyzer: AnalyzerConfig{Enabled: true, Dictionary: "ipa", TimeoutMs: 2000, InitTimeoutMs: 30000},
		Cache:    CacheConfig{Size: 1024},
		Tracker: TrackerConfig{
			UserID:          "default",
			FlushIntervalMs: 2000,
			Capacity:        50,
			WriteTimeoutMs:  10000,
		},
		Mastery: MasteryConfig{
			MasteredMinTotal:    p.Mastered.MinTotal,
			MasteredMinRatio:    p.Mastered.MinUserRatio,
			FamiliarMinTotal:    p.Familiar.MinTotal,
			FamiliarMinRatio:    p.Familiar.MinUserRatio,
			LearningMinTotal:    p.Learning.MinTotal,
			NewReviewHours:      0,
			LearningReviewHours: 24,
			FamiliarReviewHours: 72,
			MasteredReviewHours: 168,
			UserWeight:          p.UserWeight,
			AgentWeight:         p.AgentWeight,
		},
		Storage:    StorageConfig{Path: filepath.Join(dir, "yomigana.db")},
		Dictionary: DictionaryConfig{Path: filepath.Join(dir, "jmdict-eng-common.json"), AutoDownload: true},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
				return fmt.Errorf("parse config: unrecognised format: %w", err)
			}
		}
	}
	return nil
}

// ApplyEnvOverrides lets YOMIGANA_* variables override file settings.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("YOMIGANA_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("YOMIGANA_DICT"); v != "" {
		c.Dictionary.Path = v
	}
	if v := os.Getenv("YOMIGANA_USER"); v != "" {
		c.Tracker.UserID = v
	}
	if v := os.Getenv("YOMIGANA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("YOMIGANA_ANALYZER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Analyzer.Enabled = b
		}
	}
}

// AnalyzerTimeout returns the per-call analyzer timeout.
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutMs) * time.Millisecond
}

// AnalyzerInitTimeout returns the limit on loading the analyzer.
func (c *Config) AnalyzerInitTimeout() time.Duration {
	return time.Duration(c.Analyzer.InitTimeoutMs) * time.Millisecond
}

// FlushInterval returns the tracker debounce window.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Tracker.FlushIntervalMs) * time.Millisecond
}

// WriteTimeout returns the per-batch persistence timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Tracker.WriteTimeoutMs) * time.Millisecond
}

// MasteryPolicy converts the mastery section to a policy.
func (c *Config) MasteryPolicy() mastery.Policy {
	m := c.Mastery
	return mastery.Policy{
		Mastered: mastery.Threshold{MinTotal: m.MasteredMinTotal, MinUserRatio: m.MasteredMinRatio},
		Familiar: mastery.Threshold{MinTotal: m.FamiliarMinTotal, MinUserRatio: m.FamiliarMinRatio},
		Learning: mastery.Threshold{MinTotal: m.LearningMinTotal},
		Intervals: map[mastery.Level]time.Duration{
			mastery.New:      time.Duration(m.NewReviewHours) * time.Hour,
			mastery.Learning: time.Duration(m.LearningReviewHours) * time.Hour,
			mastery.Familiar: time.Duration(m.FamiliarReviewHours) * time.Hour,
			mastery.Mastered: time.Duration(m.MasteredReviewHours) * time.Hour,
		},
		UserWeight:  m.UserWeight,
		AgentWeight: m.AgentWeight,
	}
}
