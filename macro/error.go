package macro

import (
	"errors"
	"log/slog"
	"strings"
)

// Predefined errors (sentinel values).
var (
	// Registration failures, raised synchronously from [Registry.Register].
	ErrEmptyName       = NewError("macro name must not be empty")
	ErrMissingHandler  = NewError("macro handler must not be nil")
	ErrNameCollision   = NewError("macro name already registered")
	ErrInvalidArgCount = NewError("argument count must not be negative")
	ErrInvalidList     = NewError("invalid list bounds")
	ErrInvalidArgOrder = NewError("optional argument precedes required argument")
	ErrUnknownArgType  = NewError("unknown argument type")
	ErrConflictingSpec = NewError("NArgs and Args are mutually exclusive")
	ErrUnknownMacro    = NewError("unknown macro")

	// Runtime failures. Handlers signal user-level problems by returning an
	// error that wraps ErrRuntime; everything else is treated as an internal
	// (definition or engine) bug.
	ErrRuntime     = NewError("macro runtime error")
	ErrMaxDepth    = NewError("maximum macro nesting depth exceeded")
	ErrBadArgument = NewError("invalid argument")
)

// RuntimeError wraps err so the engine reports it as a runtime warning
// (a user-authored mistake) instead of an internal error.
func RuntimeError(err error) *Error {
	return ErrRuntime.Wrap(err)
}

// RuntimeErrorf creates a runtime error from a message and slog attributes.
func RuntimeErrorf(msg string, attrs ...slog.Attr) *Error {
	return ErrRuntime.Wrap(NewError(msg).With(attrs...))
}

// IsRuntime reports whether err is a user-level runtime error.
func IsRuntime(err error) bool {
	return errors.Is(err, ErrRuntime)
}

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the same sentinel as e. Derived errors
// created with [Error.With] and [Error.Wrap] share their sentinel's message
// and therefore match it.
func (e *Error) Is(target error) bool {
	te := &Error{}
	if !errors.As(target, &te) {
		return false
	}

	return te.msg != "" && te.msg == e.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs, // Share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}
