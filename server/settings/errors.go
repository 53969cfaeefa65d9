package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by reads and writes before Load has completed.
	ErrNotReady = errors.New("settings store is not ready")

	// ErrAlreadyLoading is returned when Load is called while a load is in progress.
	ErrAlreadyLoading = errors.New("settings store is already loading")

	// ErrSaveInProgress is returned when a field is saved while a previous save of the same field
	// has not completed.
	ErrSaveInProgress = errors.New("a save of this setting is already in progress")

	// ErrUnknownKey is returned for keys the store does not manage.
	ErrUnknownKey = errors.New("unknown setting key")

	// ErrInvalidValue is returned for values a setting cannot hold.
	ErrInvalidValue = errors.New("invalid setting value")
)

// PersistError reports that a validated value could not be written to the store or echoed to
// the backend. It is shown to the user as a dismissable message and never retried.
type PersistError struct {
	Key Key
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to %s setting %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
