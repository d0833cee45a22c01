package encoder

import "fmt"

// Error is a failure raised by the resolver or an encoder session.
type Error struct {
	Code    string
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so the package sentinels can
// be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeOpenFailed        = "OPEN_FAILED"
	ErrCodeBufferAllocFailed = "BUFFER_ALLOC_FAILED"
	ErrCodeConfigRejected    = "CONFIG_REJECTED"
	ErrCodeFrameTooLarge     = "FRAME_TOO_LARGE"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeDrainFailed       = "DRAIN_FAILED"
)

// Sentinels for errors.Is.
var (
	ErrInvalidConfig     = &Error{Code: ErrCodeInvalidConfig}
	ErrOpenFailed        = &Error{Code: ErrCodeOpenFailed}
	ErrBufferAllocFailed = &Error{Code: ErrCodeBufferAllocFailed}
	ErrConfigRejected    = &Error{Code: ErrCodeConfigRejected}
	ErrFrameTooLarge     = &Error{Code: ErrCodeFrameTooLarge}
	ErrInvalidState      = &Error{Code: ErrCodeInvalidState}
	ErrDrainFailed       = &Error{Code: ErrCodeDrainFailed}
)

func newError(code, op, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

func invalidConfig(format string, args ...any) *Error {
	return newError(ErrCodeInvalidConfig, "resolve", fmt.Sprintf(format, args...), nil)
}
