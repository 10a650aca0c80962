package config

import (
	"fmt"
	"strings"
)

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Analyzer.Dictionary {
	case "ipa", "uni":
	default:
		add("analyzer.dictionary", "must be ipa or uni, got %q", c.Analyzer.Dictionary)
	}
	if c.Analyzer.TimeoutMs < 0 {
		add("analyzer.timeout_ms", "must not be negative")
	}
	if c.Analyzer.InitTimeoutMs < 0 {
		add("analyzer.init_timeout_ms", "must not be negative")
	}
	if c.Cache.Size < 0 {
		add("cache.size", "must not be negative")
	}
	if strings.TrimSpace(c.Tracker.UserID) == "" {
		add("tracker.user_id", "must not be empty")
	}
	if c.Tracker.FlushIntervalMs <= 0 {
		add("tracker.flush_interval_ms", "must be positive")
	}
	if c.Tracker.Capacity <= 0 {
		add("tracker.capacity", "must be positive")
	}
	if c.Tracker.WriteTimeoutMs <= 0 {
		add("tracker.write_timeout_ms", "must be positive")
	}
	if err := c.MasteryPolicy().Validate(); err != nil {
		add("mastery", "%v", err)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		add("storage.path", "must not be empty")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "unknown level %q", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
