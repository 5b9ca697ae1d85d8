package domain

import "errors"

var (
	ErrInvalidDuration = errors.New("timer durations must be positive")
	ErrInvalidInterval = errors.New("long break interval must be positive")
)
