package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionNotFound indicates a workflow version was not found by the given identifier.
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrInvalidVersion indicates a version cannot be stored as given.
	ErrInvalidVersion = errors.New("invalid workflow version")
)

// VersionError wraps version-related errors with additional context.
type VersionError struct {
	Op        string // Operation being performed (e.g., "Load", "Save")
	VersionID string // Version ID if applicable
	Err       error  // Underlying error
}

func (e *VersionError) Error() string {
	if e.VersionID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for version %s: %v", e.Op, e.VersionID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for version errors.
func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewVersionError creates a new version error with context.
func NewVersionError(op, versionID string, err error) *VersionError {
	return &VersionError{
		Op:        op,
		VersionID: versionID,
		Err:       err,
	}
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsInvalidVersion checks if an error indicates a version was rejected before storing.
func IsInvalidVersion(err error) bool {
	return errors.Is(err, ErrInvalidVersion)
}
