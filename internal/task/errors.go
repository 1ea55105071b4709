package task

import "errors"

// Errors returned by task operations. Callers should test for them with
// errors.Is since they are usually wrapped with the region name.
var (
	// ErrAlreadyRunning is returned when a region already has an active task.
	ErrAlreadyRunning = errors.New("task already running")

	// ErrNothingToResume is returned by continue when a region has no
	// persisted progress, or only a completed one.
	ErrNothingToResume = errors.New("nothing to resume")

	// ErrInvalidParameter is returned for malformed region, center,
	// radius, skip or quiet values.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrGenerationFailed wraps errors returned by a Generator.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrPersistence is returned when the progress store cannot save,
	// load or delete a record.
	ErrPersistence = errors.New("progress persistence failed")

	// ErrNotRunning is returned when pausing or cancelling a task that is
	// not running.
	ErrNotRunning = errors.New("task not running")
)
