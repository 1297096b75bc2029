package tasks

import (
	"time"

	"github.com/mrlokans/librarian/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long to keep completed tasks. Default: 24h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// FromAppConfig builds a Config from the TASK_* settings, keeping defaults
// for anything unset.
func FromAppConfig(cfg config.Tasks) Config {
	return Config{
		Workers:           cfg.Workers,
		ReleaseAfter:      cfg.ReleaseAfter,
		CleanupInterval:   cfg.CleanupInterval,
		RetentionDuration: cfg.RetentionDuration,
	}.withDefaults()
}

// withDefaults fills every unset (zero or negative) field from DefaultConfig.
func (c Config) withDefaults() Config {
	out := DefaultConfig()
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.ReleaseAfter > 0 {
		out.ReleaseAfter = c.ReleaseAfter
	}
	if c.CleanupInterval > 0 {
		out.CleanupInterval = c.CleanupInterval
	}
	if c.RetentionDuration > 0 {
		out.RetentionDuration = c.RetentionDuration
	}
	return out
}
