// Package errs defines the error taxonomy shared by the consensus packages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a consensus error.
type Kind string

const (
	// MalformedInput is a decode-time failure: truncated buffer, bad VarInt,
	// wrong fixed length, trailing bytes.
	MalformedInput Kind = "MALFORMED_INPUT"

	// InvalidStructure is a semantic failure raised at construction time.
	InvalidStructure Kind = "INVALID_STRUCTURE"

	// VerificationFailure describes why a transaction or block was rejected.
	VerificationFailure Kind = "VERIFICATION_FAILURE"
)

// Error carries a kind, the field path that failed and the underlying cause.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Field == "" && e.Err == nil:
		return string(e.Kind)
	case e.Field == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap attaches field to err. A nested error of the same kind gets the new
// field prepended to its path, so decode failures read like
// "inputs[2].script: truncated input".
func wrap(kind Kind, field string, err error) error {
	var inner *Error
	if errors.As(err, &inner) && inner.Kind == kind {
		path := field
		if inner.Field != "" {
			path = field + "." + inner.Field
		}
		return &Error{Kind: kind, Field: path, Err: inner.Err}
	}
	return &Error{Kind: kind, Field: field, Err: err}
}

// Malformed wraps a decode failure of field.
func Malformed(field string, err error) error {
	return wrap(MalformedInput, field, err)
}

// Invalid reports a structural violation of field.
func Invalid(field, msg string) error {
	return &Error{Kind: InvalidStructure, Field: field, Err: errors.New(msg)}
}

// Rejected reports a verification failure.
func Rejected(field, msg string) error {
	return &Error{Kind: VerificationFailure, Field: field, Err: errors.New(msg)}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
