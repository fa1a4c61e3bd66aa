package engine

import (
	"errors"
	"fmt"
)

// RunError represents a fatal collaborator failure during a run: a command
// required for repair or persistence did not complete. Partial repairs
// already staged remain staged but uncommitted; the run aborts with this
// error and the process must exit non-zero.
//
// Policy denials are NOT errors - they are designed outcomes recorded as
// Decisions on the RunResult.
type RunError struct {
	// Code identifies the failure category.
	Code RunErrorCode

	// Path is the repository path being processed, when applicable.
	Path string

	// Err is the underlying collaborator error.
	Err error
}

// RunErrorCode categorizes fatal run failures.
type RunErrorCode string

const (
	// ErrCodeCollaborator indicates a read from the version-control
	// collaborator failed (diff, metadata, revision lookup).
	ErrCodeCollaborator RunErrorCode = "COLLABORATOR_FAILED"

	// ErrCodeRestoreFailed indicates a denied change could not be
	// repaired in the working tree.
	ErrCodeRestoreFailed RunErrorCode = "RESTORE_FAILED"

	// ErrCodeRegistrySave indicates the mutated registry could not be
	// persisted.
	ErrCodeRegistrySave RunErrorCode = "REGISTRY_SAVE_FAILED"

	// ErrCodeCommitFailed indicates the correction commit was rejected.
	ErrCodeCommitFailed RunErrorCode = "COMMIT_FAILED"

	// ErrCodePushFailed indicates the correction push was rejected.
	ErrCodePushFailed RunErrorCode = "PUSH_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap exposes the underlying collaborator error.
func (e *RunError) Unwrap() error { return e.Err }

// CodeOf extracts the RunErrorCode from an error chain, or "" if the error
// is not a RunError.
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func runErr(code RunErrorCode, path string, err error) *RunError {
	return &RunError{Code: code, Path: path, Err: err}
}
