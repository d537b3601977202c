package adb

import "strings"

// ConnectionType indicates how a device is connected.
type ConnectionType string

const (
	USB  ConnectionType = "usb"
	WiFi ConnectionType = "wifi"
)

// State is the adb server's view of a device.
type State string

const (
	StateOnline       State = "device"
	StateOffline      State = "offline"
	StateUnauthorized State = "unauthorized"
	StateUnknown      State = "unknown"
)

// ServerDevice is a device as listed by the adb server.
type ServerDevice struct {
	Serial      string
	State       State
	ConnType    ConnectionType
	Model       string
	Product     string
	TransportID string
}

// IsOnline returns true if the device is in "device" state (ready).
func (d ServerDevice) IsOnline() bool {
	return d.State == StateOnline
}

func connType(serial string) ConnectionType {
	if strings.Contains(serial, ":") {
		return WiFi
	}
	return USB
}
