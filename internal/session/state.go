package session

// Display labels of the device info panel.
const (
	LabelModel          = "Model"
	LabelManufacturer   = "Manufacturer"
	LabelAndroidVersion = "Android Version"
	LabelSDK            = "SDK"
	LabelSerial         = "Serial"
)

// Status messages.
const (
	StatusIdle         = "Not connected"
	StatusDisconnected = "Disconnected"
	statusConnected    = "✅ Connected to "
	statusFailed       = "❌ Connection failed"
)

// Field is one labeled value of the device info panel.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DeviceInfo is the ordered set of fields shown for a connected device.
type DeviceInfo []Field

// Get returns the value for label.
func (d DeviceInfo) Get(label string) (string, bool) {
	for _, f := range d {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// Map returns the fields keyed by label.
func (d DeviceInfo) Map() map[string]string {
	if d == nil {
		return nil
	}
	m := make(map[string]string, len(d))
	for _, f := range d {
		m[f.Label] = f.Value
	}
	return m
}

// State is a snapshot of the controller, safe to hand to a view.
type State struct {
	Connected bool
	Serial    string
	Status    string
	Info      DeviceInfo
	// Err is the classified failure of the last connect, nil after success
	// or disconnect.
	Err error
}

// Failed reports whether the last connect attempt failed.
func (s State) Failed() bool {
	return s.Err != nil
}
