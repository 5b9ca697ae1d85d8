package domain

import "time"

// Config carries the accounting tunables so tests can compress time.
type Config struct {
	// MinTrackable discards spurious micro-intervals caused by rapid tab
	// flicker.
	MinTrackable time.Duration
	// UpdateInterval bounds data loss on unclean termination to one
	// interval's worth of elapsed time.
	UpdateInterval time.Duration
	// RetentionDays is how far back day buckets are kept.
	RetentionDays int
}

func DefaultConfig() Config {
	return Config{
		MinTrackable:   time.Second,
		UpdateInterval: 30 * time.Second,
		RetentionDays:  90,
	}
}
