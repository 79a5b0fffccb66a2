package env

import "fmt"

// UndefinedVariableError reports a lookup of a name with no binding
// anywhere in the scope chain.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) String() string {
	return fmt.Sprintf("UndefinedVariableError: %q is not defined", e.Name)
}

func (e *UndefinedVariableError) Error() string {
	return e.String()
}

// AccessViolationError reports an external read of a non-public binding
// or a write to a constant.
type AccessViolationError struct {
	Name       string
	Visibility Visibility
	Write      bool
}

func (e *AccessViolationError) String() string {
	if e.Write {
		return fmt.Sprintf("AccessViolationError: cannot reassign %s binding %q", e.Visibility, e.Name)
	}

	return fmt.Sprintf("AccessViolationError: %q is %s", e.Name, e.Visibility)
}

func (e *AccessViolationError) Error() string {
	return e.String()
}

// IsUndefined reports whether err is an undefined variable error.
func IsUndefined(err error) bool {
	_, ok := err.(*UndefinedVariableError)

	return ok
}

// IsAccessViolation reports whether err is an access violation.
func IsAccessViolation(err error) bool {
	_, ok := err.(*AccessViolationError)

	return ok
}
