// Package errors defines the typed error kinds shared across the
// orchestrator core, following the kind table in the design spec.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies one of the orchestrator's error kinds.
type Code string

const (
	CodeInvalidTopic     Code = "INVALID_TOPIC"
	CodeHatNotFound      Code = "HAT_NOT_FOUND"
	CodeEventParse       Code = "EVENT_PARSE"
	CodeCliExecution     Code = "CLI_EXECUTION"
	CodeConfig           Code = "CONFIG"
	CodeIo               Code = "IO"
	CodeLoopTerminated   Code = "LOOP_TERMINATED"
	CodeLockContended    Code = "LOCK_CONTENDED"
	CodeTimeout          Code = "TIMEOUT"
	CodeCycleDetected    Code = "CYCLE_DETECTED"
)

// AppError wraps an underlying cause with one of the orchestrator's error kinds.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newErr(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

func NewInvalidTopicError(message string) *AppError { return newErr(CodeInvalidTopic, message, nil) }

func NewHatNotFoundError(message string) *AppError { return newErr(CodeHatNotFound, message, nil) }

func NewEventParseError(message string, cause error) *AppError {
	return newErr(CodeEventParse, message, cause)
}

func NewCliExecutionError(message string, cause error) *AppError {
	return newErr(CodeCliExecution, message, cause)
}

func NewConfigError(message string, cause error) *AppError {
	return newErr(CodeConfig, message, cause)
}

func NewIoError(message string, cause error) *AppError {
	return newErr(CodeIo, message, cause)
}

// ErrLoopTerminated is a sentinel for a clean shutdown; it is swallowed
// above the Driver and never surfaced as a failure.
var ErrLoopTerminated = newErr(CodeLoopTerminated, "loop terminated", nil)

func NewLockContendedError(message string) *AppError {
	return newErr(CodeLockContended, message, nil)
}

func NewTimeoutError(message string) *AppError { return newErr(CodeTimeout, message, nil) }

func NewCycleDetectedError(message string) *AppError {
	return newErr(CodeCycleDetected, message, nil)
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
