package diag

import "fmt"

// InternalError is a broken invariant inside the lowering. It is raised by
// panic and recovered only at the driver boundary, where it aborts the run.
type InternalError struct {
	Component string
	Msg       string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Component, e.Msg)
}

// Fatalf panics with an *InternalError.
func Fatalf(component, format string, args ...any) {
	panic(&InternalError{Component: component, Msg: fmt.Sprintf(format, args...)})
}

// AsInternalError converts a recovered panic value. Other panics are not
// internal errors and should be re-raised by the caller.
func AsInternalError(recovered any) (*InternalError, bool) {
	ie, ok := recovered.(*InternalError)
	return ie, ok
}
