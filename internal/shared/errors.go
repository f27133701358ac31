package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Process errors
	ErrSpawnFailure = fmt.Errorf("failed to start extractor")
	ErrCancelled    = fmt.Errorf("cancelled")

	// Path resolution errors
	ErrNotFound = fmt.Errorf("output file not found")

	// Scheduler errors
	ErrIllegalTransition = fmt.Errorf("illegal state transition")
	ErrDuplicateTask     = fmt.Errorf("task already exists for url")
	ErrAlreadyRecorded   = fmt.Errorf("url already present in history")
	ErrTaskNotFound      = fmt.Errorf("task not found")
	ErrSchedulerClosed   = fmt.Errorf("scheduler is shutting down")
	ErrNotPlaylist       = fmt.Errorf("task is not a playlist")
	ErrNothingMissing    = fmt.Errorf("no missing playlist items")
	ErrTaskActive        = fmt.Errorf("task is still active")
	ErrShutdownTimeout   = fmt.Errorf("background work outlived the shutdown grace window")

	// Collaborator errors
	ErrPrefetchFailed = fmt.Errorf("metadata prefetch failed")
	ErrAPIRequest     = fmt.Errorf("api request failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
