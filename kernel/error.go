package kernel

import "fmt"

// Error describes a kernel error. All kernel errors are defined as global
// variables that are pointers to the Error structure so callers can compare
// them by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error prefixed by the module that raised it.
func (e *Error) String() string {
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}
