package service

import (
	"errors"
	"fmt"
)

// Kind classifies every error the service returns.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindModelNotLoaded
	KindDataUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindModelNotLoaded:
		return "ModelNotLoaded"
	case KindDataUnavailable:
		return "DataUnavailable"
	default:
		return "Internal"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrModelNotLoaded is returned by model operations before Start succeeds.
var ErrModelNotLoaded = &Error{Kind: KindModelNotLoaded, Err: errors.New("Model not loaded")}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
