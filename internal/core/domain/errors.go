package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBuild is the sentinel wrapped by every BuildError.
	ErrBuild = errors.New("build failed")

	// ErrLaunch is the sentinel wrapped by every LaunchError.
	ErrLaunch = errors.New("launch failed")

	ErrAppNotFound       = errors.New("app not found")
	ErrAppExists         = errors.New("app already registered")
	ErrNotBuilt          = errors.New("app has no built image")
	ErrAlreadyRunning    = errors.New("app already running")
	ErrNotRunning        = errors.New("app not running")
	ErrBuildInProgress   = errors.New("build already in progress")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// BuildError is any failure while producing an image: an unresolvable base
// image, an unreadable source tree, or a dependency installation that exits
// non-zero. A build that fails leaves no usable image behind.
type BuildError struct {
	App  string // app being built
	Step string // failing step, e.g. "resolve source", "install dependencies"
	Err  error  // underlying cause
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for %s (%s): %v", e.App, e.Step, e.Err)
}

// Unwrap exposes ErrBuild for sentinel matching alongside the cause chain.
func (e *BuildError) Unwrap() []error { return []error{ErrBuild, e.Err} }

// NewBuildError wraps err as a BuildError for the given app and step.
func NewBuildError(app, step string, err error) *BuildError {
	return &BuildError{App: app, Step: step, Err: err}
}

// LaunchError is a run-step failure: the entry file is absent from the
// image, the runner cannot be located, or the entry process exits with a
// non-zero status before it is considered up. No retry is attempted.
type LaunchError struct {
	App      string // app being launched
	Step     string // failing step, e.g. "verify entry point", "start"
	ExitCode int    // exit status when the process died, 0 otherwise
	Err      error  // underlying cause
}

func (e *LaunchError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("launch failed for %s (%s): exit code %d: %v", e.App, e.Step, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("launch failed for %s (%s): %v", e.App, e.Step, e.Err)
}

// Unwrap exposes ErrLaunch for sentinel matching alongside the cause chain.
func (e *LaunchError) Unwrap() []error { return []error{ErrLaunch, e.Err} }

// NewLaunchError wraps err as a LaunchError for the given app and step.
func NewLaunchError(app, step string, err error) *LaunchError {
	return &LaunchError{App: app, Step: step, Err: err}
}
