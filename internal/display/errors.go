package display

import "fmt"

// Error is a failure raised while opening or presenting to a surface.
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

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodeUnsupportedDevice = "UNSUPPORTED_DEVICE"
	ErrCodeNoMatchingMode    = "NO_MATCHING_MODE"
	ErrCodeSetupFailed       = "SETUP_FAILED"
	ErrCodeFrameTooLarge     = "FRAME_TOO_LARGE"
	ErrCodeLockFailed        = "LOCK_FAILED"
	ErrCodeInvalidFrame      = "INVALID_FRAME"
	ErrCodeConvertFailed     = "CONVERT_FAILED"
	ErrCodeClosed            = "CLOSED"
)

// Sentinels for errors.Is.
var (
	ErrUnsupportedDevice = &Error{Code: ErrCodeUnsupportedDevice}
	ErrNoMatchingMode    = &Error{Code: ErrCodeNoMatchingMode}
	ErrSetupFailed       = &Error{Code: ErrCodeSetupFailed}
	ErrFrameTooLarge     = &Error{Code: ErrCodeFrameTooLarge}
	ErrLockFailed        = &Error{Code: ErrCodeLockFailed}
	ErrInvalidFrame      = &Error{Code: ErrCodeInvalidFrame}
	ErrConvertFailed     = &Error{Code: ErrCodeConvertFailed}
	ErrClosed            = &Error{Code: ErrCodeClosed}
)

func newError(code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}
