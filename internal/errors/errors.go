package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies an error class across the toolkit.
type ErrorCode int

// Error codes, grouped per module.
const (
	// Common (1000-1999)
	ErrUnknown        ErrorCode = 1000
	ErrInvalidParam   ErrorCode = 1001
	ErrNotFound       ErrorCode = 1002
	ErrTimeout        ErrorCode = 1003
	ErrCanceled       ErrorCode = 1004
	ErrNotImplemented ErrorCode = 1005

	// Devices (2000-2999)
	ErrDeviceNotFound    ErrorCode = 2000
	ErrNotAcquired       ErrorCode = 2001
	ErrNotConfigured     ErrorCode = 2002
	ErrAcquisitionFailed ErrorCode = 2003
	ErrSDKFailure        ErrorCode = 2004
	ErrDeviceBusy        ErrorCode = 2005
	ErrOvercurrent       ErrorCode = 2006
	ErrUSBTransfer       ErrorCode = 2007

	// Configuration (3000-3999)
	ErrConfigLoad     ErrorCode = 3000
	ErrConfigParse    ErrorCode = 3001
	ErrConfigValidate ErrorCode = 3002
	ErrConfigMissing  ErrorCode = 3003

	// Capture archive (4000-4999)
	ErrStorageConnect ErrorCode = 4000
	ErrStorageQuery   ErrorCode = 4001
	ErrStorageInsert  ErrorCode = 4002

	// Bench server (5000-5999)
	ErrWebSocketUpgrade ErrorCode = 5000
	ErrWebSocketSend    ErrorCode = 5001
	ErrRequestDecode    ErrorCode = 5002
)

var errorMessages = map[ErrorCode]string{
	ErrUnknown:        "unknown error",
	ErrInvalidParam:   "invalid parameter",
	ErrNotFound:       "not found",
	ErrTimeout:        "operation timed out",
	ErrCanceled:       "operation canceled",
	ErrNotImplemented: "not implemented",

	ErrDeviceNotFound:    "device not found",
	ErrNotAcquired:       "device not acquired",
	ErrNotConfigured:     "acquisition not configured",
	ErrAcquisitionFailed: "acquisition failed",
	ErrSDKFailure:        "vendor SDK call failed",
	ErrDeviceBusy:        "device busy",
	ErrOvercurrent:       "overcurrent condition",
	ErrUSBTransfer:       "usb transfer failed",

	ErrConfigLoad:     "failed to load configuration",
	ErrConfigParse:    "failed to parse configuration",
	ErrConfigValidate: "configuration validation failed",
	ErrConfigMissing:  "configuration value missing",

	ErrStorageConnect: "capture store connection failed",
	ErrStorageQuery:   "capture store query failed",
	ErrStorageInsert:  "capture store insert failed",

	ErrWebSocketUpgrade: "websocket upgrade failed",
	ErrWebSocketSend:    "websocket send failed",
	ErrRequestDecode:    "malformed request",
}

// AppError carries a code, a human message and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`
}

// StackFrame is one captured call-stack entry.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is makes AppError comparable through the standard errors.Is by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetails attaches detail text.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the original error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New creates an AppError for the given code.
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf creates an AppError with formatted details.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an arbitrary error under a code. An existing AppError keeps
// its original code.
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf wraps with formatted details.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode extracts the code from an error, ErrUnknown for foreign errors.
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "go-analog/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack renders the captured stack for logging.
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus maps the code onto an HTTP status for the bench server.
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrInvalidParam || e.Code == ErrRequestDecode:
		return 400
	case e.Code == ErrNotFound || e.Code == ErrDeviceNotFound:
		return 404
	case e.Code == ErrTimeout:
		return 408
	case e.Code == ErrDeviceBusy:
		return 409
	case e.Code >= 4000 && e.Code <= 4999:
		return 503
	default:
		return 500
	}
}

// IsRetryable reports whether the operation may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrTimeout,
		ErrDeviceBusy,
		ErrUSBTransfer,
		ErrStorageConnect:
		return true
	default:
		return false
	}
}

// ErrorResponse is the JSON error envelope returned by the bench server.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
