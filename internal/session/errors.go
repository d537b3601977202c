package session

import (
	"errors"
	"fmt"
)

// Kind classifies why a session operation failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindEnvironmentUnsupported
	KindNoDeviceSelected
	KindConnectionOpenFailed
	KindAuthenticationFailed
	KindPropertyReadFailed
	KindCloseFailed
)

func (k Kind) String() string {
	switch k {
	case KindEnvironmentUnsupported:
		return "usb access unavailable"
	case KindNoDeviceSelected:
		return "no device selected"
	case KindConnectionOpenFailed:
		return "could not open connection"
	case KindAuthenticationFailed:
		return "authentication rejected"
	case KindPropertyReadFailed:
		return "could not read device properties"
	case KindCloseFailed:
		return "close failed"
	default:
		return "unknown error"
	}
}

var (
	// ErrUnsupported means the host cannot access USB devices.
	ErrUnsupported = errors.New("usb device access not supported on this host")
	// ErrNoDevice means no ADB-capable device was selected.
	ErrNoDevice = errors.New("no device selected")
)

// Error is a session failure tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
