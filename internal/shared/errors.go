package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Store and migration errors
	ErrMigrationFailed     = fmt.Errorf("migration failed")
	ErrInvalidVersion      = fmt.Errorf("invalid schema version")
	ErrStoreClosed         = fmt.Errorf("store is closed")
	ErrNotFound            = fmt.Errorf("record not found")
	ErrConstraintViolation = fmt.Errorf("natural key constraint violated")

	// Sync errors. ErrSyncConflictSkipped is never returned from a pass; it
	// tags the diagnostic log line emitted when a pull meets a dirty row.
	ErrSyncConflictSkipped = fmt.Errorf("remote value skipped for locally modified record")
	ErrRemoteUnavailable   = fmt.Errorf("remote service unavailable")

	// Remote API errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAPIRequest       = fmt.Errorf("API request failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// MigrationError reports a schema upgrade that did not complete. Version is
// the step that failed, or zero when the failure happened before any step ran.
type MigrationError struct {
	From    int64
	To      int64
	Version int64
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%v: upgrading %d -> %d, step %d: %v", ErrMigrationFailed, e.From, e.To, e.Version, e.Err)
	}
	return fmt.Sprintf("%v: upgrading %d -> %d: %v", ErrMigrationFailed, e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMigrationFailed) match any MigrationError.
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}

// IsMigrationFailure reports whether err came out of a failed upgrade.
func IsMigrationFailure(err error) bool {
	var me *MigrationError
	return errors.As(err, &me) || errors.Is(err, ErrMigrationFailed)
}
