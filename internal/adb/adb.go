// Package adb is the boundary between adbinfo and the Android Debug Bridge.
//
// The interfaces here describe the steps of opening a session: pick a
// device, open a connection to it, authenticate, then issue commands over
// the resulting transport. The concrete implementations delegate the wire
// protocol and the RSA handshake to the adb server, reached with gadb.
package adb

import (
	"context"
	"errors"
)

var (
	// ErrDeviceNotFound is returned when the adb server does not know a serial.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrUnauthorized is returned when the device never accepted our key.
	ErrUnauthorized = errors.New("device did not authorize this host")
	// ErrClosed is returned by operations on a closed transport or client.
	ErrClosed = errors.New("transport closed")
)

// DeviceManager selects the device a session talks to.
type DeviceManager interface {
	// Available reports whether the host can access USB devices at all.
	Available() bool
	// RequestDevice picks a device. It returns a nil Device and a nil error
	// when there is nothing to pick.
	RequestDevice(ctx context.Context) (Device, error)
}

// Device is a selected device before any protocol-level connection.
type Device interface {
	Serial() string
	Connect(ctx context.Context) (Connection, error)
}

// Connection is a low-level, unauthenticated channel to one device.
type Connection interface {
	Serial() string
	Close() error
}

// AuthParams are the inputs of an authentication handshake.
type AuthParams struct {
	Serial            string
	Connection        Connection
	CredentialManager CredentialManager
}

// Authenticator turns a connection into an authenticated transport.
type Authenticator interface {
	Authenticate(ctx context.Context, p AuthParams) (Transport, error)
}

// Transport is an authenticated channel through which commands are issued.
type Transport interface {
	Serial() string
	Shell(ctx context.Context, cmd string, args ...string) (string, error)
	Close() error
}
