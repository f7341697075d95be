package core

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to test an error against them.
var (
	// ErrNotFound indicates that a key, branch, tag, remote or commit does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidRepository indicates that the history shape violates the
	// precondition of the operation (e.g. a merge commit in a linear walk)
	ErrInvalidRepository = errors.New("the repository is invalid")

	// ErrBackend indicates that the graph store or storage medium failed
	ErrBackend = errors.New("backend error")

	// ErrUnknown is the catch-all kind
	ErrUnknown = errors.New("unknown error")

	// ErrAlreadyExists indicates that a named object already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrDetachedHead indicates that HEAD does not point to a branch
	ErrDetachedHead = errors.New("HEAD is detached")

	// ErrInvalidArgument indicates malformed caller input
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries an error kind together with the failing operation.
type Error struct {
	Kind   error
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is returns true if target is the kind of this error
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op string, err error, format string, args ...any) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

// NotFound creates an ErrNotFound error
func NotFound(op, format string, args ...any) *Error {
	return newError(ErrNotFound, op, nil, format, args...)
}

// InvalidRepository creates an ErrInvalidRepository error
func InvalidRepository(op, format string, args ...any) *Error {
	return newError(ErrInvalidRepository, op, nil, format, args...)
}

// AlreadyExists creates an ErrAlreadyExists error
func AlreadyExists(op, format string, args ...any) *Error {
	return newError(ErrAlreadyExists, op, nil, format, args...)
}

// InvalidArgument creates an ErrInvalidArgument error
func InvalidArgument(op, format string, args ...any) *Error {
	return newError(ErrInvalidArgument, op, nil, format, args...)
}

// Unknown creates an ErrUnknown error
func Unknown(op, format string, args ...any) *Error {
	return newError(ErrUnknown, op, nil, format, args...)
}

// Backend wraps a failure reported by the underlying store.
func Backend(op string, err error) *Error {
	return newError(ErrBackend, op, err, "")
}

// DetachedHead creates an ErrDetachedHead error for the commit HEAD points at
func DetachedHead(op string, at CommitHash) *Error {
	return newError(ErrDetachedHead, op, nil, "at %s", at.Short())
}

// Wrap attaches a kind to an error reported by the underlying store.
func Wrap(kind error, op string, err error) *Error {
	return newError(kind, op, err, "")
}
