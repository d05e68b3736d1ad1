package asqlite

import (
	"errors"
	"fmt"
	"os"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrorCode classifies an Error. Engine errors carry the database's native
// result code in Error.EngineCode; the remaining codes describe failures
// raised by this library itself.
type ErrorCode int

const (
	// ErrEngine is an error surfaced by the underlying SQL engine.
	ErrEngine ErrorCode = iota + 1
	// ErrInvalidConnection means an operation referenced an unknown
	// connection id.
	ErrInvalidConnection
	// ErrInvalidTransaction means commit or rollback was attempted on a
	// transaction that already reached a terminal state.
	ErrInvalidTransaction
	// ErrTaskCanceled means the task was canceled before its operation
	// started executing.
	ErrTaskCanceled
	// ErrUnsupportedValue means a host value has no database representation.
	ErrUnsupportedValue
	// ErrInternal marks states that should be unreachable.
	ErrInternal
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrEngine:
		return "engine"
	case ErrInvalidConnection:
		return "invalid_connection"
	case ErrInvalidTransaction:
		return "invalid_transaction"
	case ErrTaskCanceled:
		return "task_canceled"
	case ErrUnsupportedValue:
		return "unsupported_value"
	case ErrInternal:
		return "internal"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the failure value delivered through task resolution. Code gives
// the classification, Message a human-readable description. For ErrEngine,
// EngineCode preserves the SQLite result code.
type Error struct {
	Code       ErrorCode
	EngineCode int
	Message    string
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

func errInvalidConnection(id int) *Error {
	return &Error{
		Code:    ErrInvalidConnection,
		Message: fmt.Sprintf("invalid connection id %d", id),
	}
}

func errInvalidTransaction() *Error {
	return &Error{
		Code:    ErrInvalidTransaction,
		Message: "transaction is not active",
	}
}

func errTaskCanceled() *Error {
	return &Error{
		Code:    ErrTaskCanceled,
		Message: "task canceled",
	}
}

func errUnsupportedValue(v any) *Error {
	return &Error{
		Code:    ErrUnsupportedValue,
		Message: fmt.Sprintf("unsupported value type %T", v),
	}
}

func errInternal(format string, args ...any) *Error {
	return &Error{
		Code:    ErrInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// errEngine wraps a database failure, preserving the engine's native result
// code when one is available and falling back to a fixed mapping otherwise.
func errEngine(err error) *Error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return &Error{
			Code:       ErrEngine,
			EngineCode: int(se.Code),
			Message:    se.Error(),
			cause:      err,
		}
	}
	return &Error{
		Code:       ErrEngine,
		EngineCode: fallbackEngineCode(err),
		Message:    err.Error(),
		cause:      err,
	}
}

func fallbackEngineCode(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return int(sqlite3.ErrCantOpen)
	case errors.Is(err, os.ErrPermission):
		return int(sqlite3.ErrPerm)
	}
	return int(sqlite3.ErrError)
}

// asError normalizes a worker failure into an *Error, classifying anything
// that is not already one as an engine error.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return errEngine(err)
}
