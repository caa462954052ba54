// Package codec holds what the format codecs share: the error contract and
// a bounds-checked binary reader.
package codec

import (
	"errors"
	"fmt"
)

// Error kinds. Test with errors.Is.
var (
	ErrMalformedHeader        = errors.New("malformed header")
	ErrUnsupportedDType       = errors.New("unsupported data type")
	ErrUnsupportedInterleave  = errors.New("unsupported interleave")
	ErrTruncatedData          = errors.New("truncated data")
	ErrIOFailure              = errors.New("i/o failure")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrVariableNotFound       = errors.New("variable not found")
)

// Error describes a codec failure. Kind is one of the Err values above;
// Err is the underlying cause, if any.
type Error struct {
	Format string
	Kind   error
	Offset int64
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Format + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error without an offset.
func Errorf(format string, kind error, detail string, args ...any) *Error {
	return &Error{Format: format, Kind: kind, Offset: -1, Detail: fmt.Sprintf(detail, args...)}
}

// ErrorAt builds an *Error located at a byte offset.
func ErrorAt(format string, kind error, offset int64, detail string, args ...any) *Error {
	return &Error{Format: format, Kind: kind, Offset: offset, Detail: fmt.Sprintf(detail, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(format string, kind error, err error, detail string, args ...any) *Error {
	return &Error{Format: format, Kind: kind, Offset: -1, Detail: fmt.Sprintf(detail, args...), Err: err}
}
