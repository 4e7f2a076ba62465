package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrGeneration         = errors.New("generation failed")
	ErrJobNotCompleted    = errors.New("job is not completed")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrQueueFull          = errors.New("worker queue full")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
