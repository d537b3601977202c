// Package usbdev finds Android devices on the USB bus and hands them to the
// adb layer. It plays the part of a device picker: enumerate ADB-capable
// interfaces, choose one, and open a connection to it through the adb server.
package usbdev

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/gousb"
	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/adb"
)

// ADB interface triple, as advertised by adbd.
const (
	adbClass    = gousb.ClassVendorSpec
	adbSubClass = gousb.Class(0x42)
	adbProtocol = gousb.Protocol(0x01)
)

// Candidate is an ADB-capable USB device.
type Candidate struct {
	Serial       string
	Manufacturer string
	Product      string
	Vendor       gousb.ID
	ProductID    gousb.ID
	Bus          int
	Address      int
}

func (c Candidate) String() string {
	name := strings.TrimSpace(c.Manufacturer + " " + c.Product)
	if name == "" {
		name = "unknown device"
	}
	return fmt.Sprintf("%03d:%03d %s:%s %s (%s)", c.Bus, c.Address, c.Vendor, c.ProductID, c.Serial, name)
}

// Bus enumerates ADB-capable USB devices.
type Bus interface {
	Probe() error
	Candidates() ([]Candidate, error)
}

// Opener opens an adb connection for a serial.
type Opener interface {
	Open(ctx context.Context, serial string) (adb.Connection, error)
}

// Manager implements adb.DeviceManager on top of a Bus and an Opener.
type Manager struct {
	bus    Bus
	opener Opener
	serial string
	log    zerolog.Logger
}

// NewManager returns a Manager that enumerates with libusb and opens
// connections through server. A non-empty serial restricts selection to it.
func NewManager(server *adb.Server, serial string, log zerolog.Logger) *Manager {
	return newManager(libusbBus{}, server, serial, log)
}

func newManager(bus Bus, opener Opener, serial string, log zerolog.Logger) *Manager {
	return &Manager{bus: bus, opener: opener, serial: serial, log: log}
}

// Available reports whether libusb can be initialized on this host.
func (m *Manager) Available() bool {
	if err := m.bus.Probe(); err != nil {
		m.log.Debug().Err(err).Msg("usb unavailable")
		return false
	}
	return true
}

// Candidates lists ADB-capable devices.
func (m *Manager) Candidates() ([]Candidate, error) {
	return m.bus.Candidates()
}

// RequestDevice picks the configured serial if set, else the first
// candidate. It returns nil, nil when nothing matches.
func (m *Manager) RequestDevice(ctx context.Context) (adb.Device, error) {
	cands, err := m.bus.Candidates()
	if err != nil {
		return nil, fmt.Errorf("enumerate usb devices: %w", err)
	}
	c, ok := choose(cands, m.serial)
	if !ok {
		m.log.Debug().Int("candidates", len(cands)).Str("want", m.serial).Msg("no device selected")
		return nil, nil
	}
	m.log.Debug().Str("device", c.String()).Msg("device selected")
	return &device{c: c, opener: m.opener}, nil
}

func choose(cands []Candidate, serial string) (Candidate, bool) {
	for _, c := range cands {
		if c.Serial == "" {
			// adb cannot address a device without a serial.
			continue
		}
		if serial == "" || c.Serial == serial {
			return c, true
		}
	}
	return Candidate{}, false
}

type device struct {
	c      Candidate
	opener Opener
}

func (d *device) Serial() string {
	return d.c.Serial
}

func (d *device) Connect(ctx context.Context) (adb.Connection, error) {
	return d.opener.Open(ctx, d.c.Serial)
}

// isADB reports whether any interface setting of desc is an ADB interface.
func isADB(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == adbClass && alt.SubClass == adbSubClass && alt.Protocol == adbProtocol {
					return true
				}
			}
		}
	}
	return false
}

// libusbBus enumerates with a short-lived gousb context per call.
type libusbBus struct{}

var errNoLibusb = errors.New("libusb not available")

// newContext turns gousb's init panic into an error.
func newContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errNoLibusb, r)
		}
	}()
	return gousb.NewContext(), nil
}

func (libusbBus) Probe() error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	return ctx.Close()
}

func (libusbBus) Candidates() ([]Candidate, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	devs, err := ctx.OpenDevices(isADB)
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	// OpenDevices reports devices it could not open (usually permissions)
	// but still returns the ones it did.
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("open usb devices: %w", err)
	}

	cands := make([]Candidate, 0, len(devs))
	for _, d := range devs {
		c := Candidate{
			Vendor:    d.Desc.Vendor,
			ProductID: d.Desc.Product,
			Bus:       d.Desc.Bus,
			Address:   d.Desc.Address,
		}
		c.Serial, _ = d.SerialNumber()
		c.Manufacturer, _ = d.Manufacturer()
		c.Product, _ = d.Product()
		cands = append(cands, c)
	}
	return cands, nil
}
