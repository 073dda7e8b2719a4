package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode categorizes errors
type ErrorCode string

const (
	ErrCodeDecode      ErrorCode = "DECODE_ERROR"
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeEncode      ErrorCode = "ENCODE_ERROR"
	ErrCodeCancelled   ErrorCode = "CANCELLED"
	ErrCodeBootstrap   ErrorCode = "BOOTSTRAP_ERROR"
	ErrCodeFFmpeg      ErrorCode = "FFMPEG_ERROR"
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
)

// WorkbenchError is the base structured error
type WorkbenchError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *WorkbenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *WorkbenchError) Unwrap() error {
	return e.Cause
}

// DecodeError reports source media that could not be read.
type DecodeError struct {
	WorkbenchError
	File string
}

func NewDecodeError(file string, cause error) *DecodeError {
	return &DecodeError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeDecode,
			Message: fmt.Sprintf("cannot decode %q", file),
			Cause:   cause,
		},
		File: file,
	}
}

// UnsupportedFormatError reports a source codec the engine cannot read.
type UnsupportedFormatError struct {
	WorkbenchError
	File string
}

func NewUnsupportedFormatError(file, message string, cause error) *UnsupportedFormatError {
	return &UnsupportedFormatError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("%s: %s", file, message),
			Cause:   cause,
		},
		File: file,
	}
}

// EncodeError reports a target format/bitrate/quality combination the
// engine could not produce.
type EncodeError struct {
	WorkbenchError
	Format string
}

func NewEncodeError(format, message string, cause error) *EncodeError {
	return &EncodeError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeEncode,
			Message: message,
			Cause:   cause,
		},
		Format: format,
	}
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s (format=%s)", e.WorkbenchError.Error(), e.Format)
}

// CancelledError is a user-initiated abort, not a failure.
type CancelledError struct {
	WorkbenchError
}

func NewCancelledError(message string, cause error) *CancelledError {
	return &CancelledError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeCancelled,
			Message: message,
			Cause:   cause,
		},
	}
}

// BootstrapError reports an engine that failed to initialize.
type BootstrapError struct {
	WorkbenchError
	Engine string
}

func NewBootstrapError(engine string, cause error) *BootstrapError {
	return &BootstrapError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeBootstrap,
			Message: fmt.Sprintf("processing engine %q unavailable", engine),
			Cause:   cause,
		},
		Engine: engine,
	}
}

// FFmpegError represents an FFmpeg execution failure
type FFmpegError struct {
	WorkbenchError
	Args     []string
	ExitCode int
	Stderr   string
}

func NewFFmpegError(message string, args []string, exitCode int, stderr string, cause error) *FFmpegError {
	return &FFmpegError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeFFmpeg,
			Message: message,
			Cause:   cause,
		},
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("[%s] %s (exit=%d, stderr=%q): %v",
		e.Code, e.Message, e.ExitCode, truncate(e.Stderr, 200), e.Cause)
}

// ValidationError represents input validation failure
type ValidationError struct {
	WorkbenchError
	Field string
	Value interface{}
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		WorkbenchError: WorkbenchError{
			Code:    ErrCodeValidation,
			Message: message,
		},
		Field: field,
		Value: value,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// IsCancelled reports whether err is a user-initiated abort. A bare context
// cancellation counts too.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := As[*CancelledError](err); ok {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsBootstrap reports whether err came from engine initialization.
func IsBootstrap(err error) bool {
	_, ok := As[*BootstrapError](err)
	return ok
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
