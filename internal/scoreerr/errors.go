package scoreerr

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers and mapped to HTTP statuses by the
// API layer.
const (
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeEmptyInput          = "EMPTY_INPUT"
	CodeDeviceUnavailable   = "DEVICE_UNAVAILABLE"
	CodeNoActiveCapture     = "NO_ACTIVE_CAPTURE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeTimeout             = "TIMEOUT_ERROR"
	CodeNetwork             = "NETWORK_ERROR"
	CodeServer              = "SERVER_ERROR"
	CodeProtocol            = "PROTOCOL_ERROR"
	CodeDecompressionFailed = "DECOMPRESSION_FAILED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
)

// Error is the structured error returned across package boundaries.
type Error struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Err         error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on the code, so sentinel-style comparisons work
// across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a structured error without an underlying cause.
func New(code, message string, recoverable bool) *Error {
	return &Error{Code: code, Message: message, Recoverable: recoverable}
}

// Newf creates a structured error with a formatted message.
func Newf(code string, recoverable bool, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Recoverable: recoverable}
}

// Wrap attaches a cause to a structured error.
func Wrap(code, message string, recoverable bool, err error) *Error {
	return &Error{Code: code, Message: message, Recoverable: recoverable, Err: err}
}

// CodeOf extracts the stable code from err, or empty string if err is not
// part of the taxonomy.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsRecoverable reports whether err is marked recoverable. Errors outside
// the taxonomy are treated as non-recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}
	return false
}
