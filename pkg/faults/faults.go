// Package faults defines the fatal error kinds of the discovery pipeline.
// All four kinds abort the remaining candidate batch; expected negative
// outcomes (a dirty fixed build, a patch with the wrong failure shape, a
// test dropped by isolation) are values on the result path, never errors.
package faults

import (
	"errors"
	"fmt"
)

// ConfigError reports broken input data or configuration: an unknown
// project, a missing or malformed patch artifact.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Msg, e.Err)
	}

	return "configuration: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BuildError reports a checkout, patch-apply or compile tool failure.
// These are environment faults, never a per-candidate outcome.
type BuildError struct {
	Candidate int
	Stage     string
	Output    string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build: candidate %d, stage %s: %v", e.Candidate, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// RunError reports a test-execution tool failure (non-zero exit outside of
// ordinary test failures).
type RunError struct {
	Candidate int
	Stage     string
	Output    string
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run: candidate %d, stage %s: %v", e.Candidate, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// InvariantError reports a violated pipeline invariant, e.g. the same
// failing test name appearing twice in one report. It signals a
// non-deterministic build; isolation results from the same workspace
// cannot be trusted afterwards.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// IsFatal reports whether err is one of the batch-aborting kinds.
func IsFatal(err error) bool {
	var (
		cfgErr *ConfigError
		bldErr *BuildError
		runErr *RunError
		invErr *InvariantError
	)

	return errors.As(err, &cfgErr) ||
		errors.As(err, &bldErr) ||
		errors.As(err, &runErr) ||
		errors.As(err, &invErr)
}
