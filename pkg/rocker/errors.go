package rocker

import (
	"errors"
)

var (
	// ErrNotFound is returned by reads of a key with no value.
	ErrNotFound = errors.New("rocker: not found")
	// ErrUnknownKeyspace is returned when a keyspace name does not resolve.
	ErrUnknownKeyspace = errors.New("rocker: unknown keyspace")
	// ErrExhausted is returned by Cursor.Next past the last entry.
	ErrExhausted = errors.New("rocker: cursor exhausted")
	// ErrClosed is returned by operations on a closed DB or Cursor.
	ErrClosed          = errors.New("rocker: handle is closed")
	ErrKeyspaceExists  = errors.New("rocker: keyspace already exists")
	ErrInvalidKeyspace = errors.New("rocker: invalid keyspace")
	ErrInvalidOp       = errors.New("rocker: invalid batch operation")
)

const (
	errEngineMismatch = "database at %q uses engine %s, not %s"
	errDropDefault    = "%w: the default keyspace cannot be dropped"
)

// Kind classifies failures that carry an engine message.
type Kind uint8

const (
	// KindConfig covers open and create failures caused by options.
	KindConfig Kind = iota + 1
	// KindEngine covers I/O, corruption and resource failures.
	KindEngine
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Error wraps a failure reported by the storage engine. Its message is the
// engine's text, unchanged.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool {
	return isKind(err, KindConfig)
}

// IsEngine reports whether err is an engine fault.
func IsEngine(err error) bool {
	return isKind(err, KindEngine)
}

func isKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func configError(err error) error {
	return wrap(KindConfig, err)
}

func engineError(err error) error {
	return wrap(KindEngine, err)
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
