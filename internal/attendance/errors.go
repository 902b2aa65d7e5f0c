package attendance

import "fmt"

// The error categories below follow the service-wide taxonomy: validation
// errors surface to the user and are never retried; location errors abort
// the current evaluator tick only; persistence errors are logged and
// surfaced without rolling back the optimistic in-memory state;
// precondition errors reject operations on records that do not exist.

// ValidationError reports bad user input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// LocationError reports a failure to obtain the device location.
type LocationError struct {
	Err error
}

func (e *LocationError) Error() string { return "location unavailable: " + e.Err.Error() }
func (e *LocationError) Unwrap() error { return e.Err }

// PersistenceError reports a document store read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// PreconditionError reports an operation on a record that does not exist.
type PreconditionError struct {
	Date   string
	SlotID string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("no attendance record for slot %s on %s", e.SlotID, e.Date)
}
