package terra

import "fmt"

// ErrorCode tags every error Terra's public API can return, per spec.md §7.
type ErrorCode int

const (
	// ErrInvalidArgument marks a bad size, unknown id, or zero extent. The
	// caller can recover by fixing the argument and retrying.
	ErrInvalidArgument ErrorCode = iota
	// ErrShaderNotFound marks a shader file open failure.
	ErrShaderNotFound
	// ErrShaderInvalid marks a shader module creation failure.
	ErrShaderInvalid
	// ErrOutOfMemory marks a device or host allocation rejection.
	ErrOutOfMemory
	// ErrSwapchainStale is returned from Render when the caller must call Resize.
	ErrSwapchainStale
	// ErrDeviceLost is fatal: the Renderer is poisoned and every subsequent
	// error-returning call other than Destroy returns this.
	ErrDeviceLost
	// ErrIOError marks a shader file read failure, a subset of ErrShaderNotFound.
	ErrIOError
	// ErrInternal marks a violated postcondition; indicative of a bug.
	ErrInternal
	// ErrUnknownMesh marks an AddModelBundle referencing an unregistered mesh id.
	ErrUnknownMesh
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrShaderNotFound:
		return "ShaderNotFound"
	case ErrShaderInvalid:
		return "ShaderInvalid"
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrSwapchainStale:
		return "SwapchainStale"
	case ErrDeviceLost:
		return "DeviceLost"
	case ErrIOError:
		return "IOError"
	case ErrInternal:
		return "Internal"
	case ErrUnknownMesh:
		return "UnknownMesh"
	default:
		return "Unknown"
	}
}

// Error is Terra's public error type. It wraps an underlying cause with one
// of the §7 error codes and the operation that produced it, grounded on
// vulkan-go-asche/errors.go's newError(vk.Result) wrapping pattern
// generalized from "always a vk.Result" to "any cause."
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("terra: %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("terra: %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds an *Error, the one place error codes get attached.
func newErr(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}
