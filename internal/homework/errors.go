package homework

import (
	"errors"
	"fmt"
)

// Kind names a failure class. Callers branch on kinds, not on message text.
type Kind string

const (
	KindConfiguration    Kind = "ConfigurationError"
	KindFetch            Kind = "FetchError"
	KindUnexpectedStatus Kind = "UnexpectedStatusError"
	KindDecode           Kind = "DecodeError"
	KindShape            Kind = "ShapeError"
	KindMissingField     Kind = "MissingFieldError"
	KindUnknownStatus    Kind = "UnknownStatusError"
	KindDelivery         Kind = "DeliveryError"
)

// Sentinels for errors.Is.
var (
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrFetch            = &Error{Kind: KindFetch}
	ErrUnexpectedStatus = &Error{Kind: KindUnexpectedStatus}
	ErrDecode           = &Error{Kind: KindDecode}
	ErrShape            = &Error{Kind: KindShape}
	ErrMissingField     = &Error{Kind: KindMissingField}
	ErrUnknownStatus    = &Error{Kind: KindUnknownStatus}
	ErrDelivery         = &Error{Kind: KindDelivery}
)

// Error is the single error type produced by this package and its callers.
//
// Code is only set for KindUnexpectedStatus. Field is set for
// KindMissingField and KindUnknownStatus (the offending key or value).
type Error struct {
	Kind  Kind
	Msg   string
	Code  int
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ConfigurationError reports missing or invalid startup configuration.
func ConfigurationError(msg string, err error) error {
	return newError(KindConfiguration, msg, err)
}

// DeliveryError reports a failed chat notification.
func DeliveryError(err error) error {
	return newError(KindDelivery, "send message", err)
}
