package value

import (
	"fmt"
	"strings"
)

// ErrorValue is a structured runtime error: a named error type, a
// message, and optional arguments attached at raise time.
type ErrorValue struct {
	ErrorType      string
	Message        string
	Arguments      []Value
	SourceLocation int
}

// NewError builds an error payload.
func NewError(errorType, message string, args ...Value) *ErrorValue {
	return &ErrorValue{ErrorType: errorType, Message: message, Arguments: args}
}

// String renders Error(type: message), with arguments appended when
// present.
func (ev *ErrorValue) String() string {
	if ev == nil {
		return "Error(<nil>)"
	}
	if len(ev.Arguments) == 0 {
		return fmt.Sprintf("Error(%s: %s)", ev.ErrorType, ev.Message)
	}

	rendered := make([]string, len(ev.Arguments))
	for i, a := range ev.Arguments {
		rendered[i] = a.String()
	}

	return fmt.Sprintf("Error(%s: %s, args: [%s])", ev.ErrorType, ev.Message, strings.Join(rendered, ", "))
}

func (ev *ErrorValue) Error() string {
	return ev.String()
}

// Builtin error constructors. Each names one of the pre-registered error
// types.

// DivisionByZero builds a DivisionByZero error.
func DivisionByZero(message string) *ErrorValue {
	if message == "" {
		message = "division by zero"
	}

	return NewError("DivisionByZero", message)
}

// IndexOutOfBounds builds an IndexOutOfBounds error for an index against
// a container length.
func IndexOutOfBounds(index, length int) *ErrorValue {
	return NewError("IndexOutOfBounds",
		fmt.Sprintf("index %d out of bounds for length %d", index, length),
		NewInt(int64(index)), NewInt(int64(length)))
}

// NullReference builds a NullReference error.
func NullReference(message string) *ErrorValue {
	if message == "" {
		message = "null reference"
	}

	return NewError("NullReference", message)
}

// TypeConversion builds a TypeConversion error.
func TypeConversion(from, to string) *ErrorValue {
	return NewError("TypeConversion", fmt.Sprintf("cannot convert %s to %s", from, to))
}

// IOError builds an IOError.
func IOError(message string) *ErrorValue {
	return NewError("IOError", message)
}

// ParseError builds a ParseError.
func ParseError(message string) *ErrorValue {
	return NewError("ParseError", message)
}

// NetworkError builds a NetworkError.
func NetworkError(message string) *ErrorValue {
	return NewError("NetworkError", message)
}

type errorUnionState int

const (
	unionStateSuccess errorUnionState = iota
	unionStateError
)

func (s errorUnionState) String() string {
	if s == unionStateError {
		return "error"
	}

	return "success"
}

type errorUnionData struct {
	state errorUnionState
	value Value
	err   *ErrorValue
}

// ErrorUnion is a two-state result: exactly one of a success value or an
// error payload is populated at any time.
type ErrorUnion struct {
	state errorUnionState
	value Value
	err   *ErrorValue
}

// StateMismatchError reports a read of the inactive state of an error
// union.
type StateMismatchError struct {
	Requested string
	Actual    string
}

func (sme *StateMismatchError) Error() string {
	return fmt.Sprintf("error union holds %s, not %s", sme.Actual, sme.Requested)
}

// Success builds an error union in its success state.
func Success(v Value) ErrorUnion {
	return ErrorUnion{state: unionStateSuccess, value: v}
}

// Failure builds an error union in its error state.
func Failure(err *ErrorValue) ErrorUnion {
	if err == nil {
		err = NewError("Error", "unspecified error")
	}

	return ErrorUnion{state: unionStateError, err: err}
}

// IsSuccess reports whether the union holds a success value.
func (eu ErrorUnion) IsSuccess() bool {
	return eu.state == unionStateSuccess
}

// IsError reports whether the union holds an error.
func (eu ErrorUnion) IsError() bool {
	return eu.state == unionStateError
}

// SuccessValue returns the success payload, or a StateMismatchError when
// the union holds an error.
func (eu ErrorUnion) SuccessValue() (Value, error) {
	if eu.state != unionStateSuccess {
		return Value{}, &StateMismatchError{Requested: "success", Actual: eu.state.String()}
	}

	return eu.value, nil
}

// ErrorPayload returns the error payload, or a StateMismatchError when
// the union holds a success value.
func (eu ErrorUnion) ErrorPayload() (*ErrorValue, error) {
	if eu.state != unionStateError {
		return nil, &StateMismatchError{Requested: "error", Actual: eu.state.String()}
	}

	return eu.err, nil
}

// SuccessOr returns the success payload, or the fallback when the union
// holds an error.
func (eu ErrorUnion) SuccessOr(fallback Value) Value {
	if eu.state == unionStateSuccess {
		return eu.value
	}

	return fallback
}

// String renders the active side.
func (eu ErrorUnion) String() string {
	if eu.state == unionStateError {
		return eu.err.String()
	}

	return eu.value.String()
}

// ToValue packs the union into a value of the given error union type.
// The error side must be accepted by the type's error set.
func (eu ErrorUnion) ToValue(t *Type) (Value, error) {
	if t == nil || t.Tag != TagErrorUnion || t.ErrorUnion == nil {
		return Value{}, fmt.Errorf("ToValue: %s is not an error union type", t.String())
	}
	if eu.state == unionStateError && !t.ErrorUnion.Accepts(eu.err.ErrorType) {
		return Value{}, fmt.Errorf("error union %s does not accept error type %q", t.String(), eu.err.ErrorType)
	}

	return Value{Type: t, data: errorUnionData(eu)}, nil
}

// ErrorUnionFromValue unpacks an error union value.
func ErrorUnionFromValue(v Value) (ErrorUnion, error) {
	data, ok := v.data.(errorUnionData)
	if !ok {
		return ErrorUnion{}, fmt.Errorf("value %s is not an error union", v.Type.String())
	}

	return ErrorUnion(data), nil
}

// WrapSuccess packs a success value into an error union value of the
// given type.
func WrapSuccess(t *Type, v Value) (Value, error) {
	return Success(v).ToValue(t)
}

// WrapError packs an error into an error union value of the given type.
func WrapError(t *Type, err *ErrorValue) (Value, error) {
	return Failure(err).ToValue(t)
}
