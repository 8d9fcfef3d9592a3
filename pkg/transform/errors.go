package transform

import (
	"errors"
	"fmt"
)

// Coarse error codes surfaced to callers. The UI layer maps these to
// localized guidance; the engine's job is only to produce them consistently.
const (
	CodeNoAPIKey        = "NO_API_KEY"
	CodeNoModel         = "NO_MODEL"
	CodeEngineNotReady  = "ENGINE_NOT_READY"
	CodeEngineLoading   = "ENGINE_LOADING"
	CodeTimeout         = "TIMEOUT"
	CodeConnectionFail  = "CONNECTION_FAILED"
	CodeModeUnsupported = "MODE_UNSUPPORTED"
	CodeLoadFailed      = "LOAD_FAILED"
	CodeQueueFull       = "QUEUE_FULL"
)

// Error is a coded engine error. Code is one of the constants above; Message
// is a human-readable description; Err is the wrapped cause, if any.
type Error struct {
	Code    string
	Message string
	Err     error
}

// E constructs a coded error.
func E(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Ef constructs a coded error with a formatted message.
func Ef(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a cause to a coded error.
func WrapErr(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the error code from err, or an empty string if err carries
// no coded error in its chain.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
