// Package worker provides background job processing for SafeTrail.
package worker

import (
	"time"
)

// SweepConfig holds configuration for the detection sweep job. A sweep
// evaluates every tracked tourist so that time-based conditions, such
// as inactivity or communication loss, surface without waiting for the
// next location sample.
type SweepConfig struct {
	// Interval is how often a full sweep runs.
	// Default: 1 minute
	Interval time.Duration

	// Concurrency is the number of tourists evaluated in parallel.
	// Default: 4
	Concurrency int

	// Timeout bounds the evaluation of a single tourist.
	// Default: 10 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:    time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	def := DefaultSweepConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
