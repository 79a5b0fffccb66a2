package runtime

import "fmt"

// ErrorCode classifies memory runtime errors.
type ErrorCode int

const (
	ErrorOutOfMemory     ErrorCode = iota // Out of memory
	ErrorInvalidSize                      // Invalid allocation size
	ErrorInvalidHandle                    // Handle index out of range or wrong type
	ErrorStaleGeneration                  // Handle generation no longer current
	ErrorRegionClosed                     // Region already closed
	ErrorDoubleFree                       // Slot released twice
	ErrorUseAfterMove                     // Linear handle used after move
	ErrorLimitExceeded                    // Configured limit exceeded
)

// String returns string representation of error code
func (ec ErrorCode) String() string {
	switch ec {
	case ErrorOutOfMemory:
		return "OutOfMemory"
	case ErrorInvalidSize:
		return "InvalidSize"
	case ErrorInvalidHandle:
		return "InvalidHandle"
	case ErrorStaleGeneration:
		return "StaleGeneration"
	case ErrorRegionClosed:
		return "RegionClosed"
	case ErrorDoubleFree:
		return "DoubleFree"
	case ErrorUseAfterMove:
		return "UseAfterMove"
	case ErrorLimitExceeded:
		return "LimitExceeded"
	default:
		return fmt.Sprintf("Unknown(%d)", int(ec))
	}
}

// AllocationError reports a failed allocation. Allocation failures are
// synchronous and fatal to the requesting operation; there is no retry
// machinery behind them.
type AllocationError struct {
	Message string
	Code    ErrorCode
	Size    uintptr
	Region  string
}

// String returns string representation of allocation error
func (ae *AllocationError) String() string {
	if ae.Region != "" {
		return fmt.Sprintf("AllocationError[%s]: %s (region=%s, size=%d)",
			ae.Code.String(), ae.Message, ae.Region, ae.Size)
	}

	return fmt.Sprintf("AllocationError[%s]: %s (size=%d)", ae.Code.String(), ae.Message, ae.Size)
}

// Error implements error interface
func (ae *AllocationError) Error() string {
	return ae.String()
}

// InvalidReferenceError reports a handle whose slot is gone: the region was
// closed, the slot was released, or the generation moved on. Dereferencing
// such a handle is a recoverable error, never undefined behavior.
type InvalidReferenceError struct {
	Code   ErrorCode
	Region string
	Index  uint32
	Have   uint64
	Want   uint64
}

// String returns string representation of invalid reference error
func (ire *InvalidReferenceError) String() string {
	return fmt.Sprintf("InvalidReferenceError[%s]: region=%s index=%d generation=%d current=%d",
		ire.Code.String(), ire.Region, ire.Index, ire.Want, ire.Have)
}

// Error implements error interface
func (ire *InvalidReferenceError) Error() string {
	return ire.String()
}

// IsInvalidReference reports whether err is an InvalidReferenceError.
func IsInvalidReference(err error) bool {
	_, ok := err.(*InvalidReferenceError)

	return ok
}

// IsAllocationFailure reports whether err is an AllocationError.
func IsAllocationFailure(err error) bool {
	_, ok := err.(*AllocationError)

	return ok
}
