// Package session owns the lifecycle of one device session: selecting a
// device, authenticating, reading its properties, and tearing it down. Views
// drive it through Connect and Disconnect and render State snapshots.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/adb"
	"github.com/FluidXR/adbinfo/internal/keystore"
)

// Property names read on connect, in read order.
const (
	PropModel        = "ro.product.model"
	PropManufacturer = "ro.product.manufacturer"
	PropSDK          = "ro.build.version.sdk"
	PropRelease      = "ro.build.version.release"
)

// Recorder persists session history.
type Recorder interface {
	RecordConnect(serial, model, manufacturer, release, sdk string) (int64, error)
	RecordDisconnect(id int64) error
}

// Options wires a Controller to its collaborators. Devices and Authenticator
// are required.
type Options struct {
	Devices       adb.DeviceManager
	Authenticator adb.Authenticator
	// NewStorage returns the key storage for one connect attempt. Defaults
	// to a fresh keystore.Memory.
	NewStorage func() keystore.Storage
	// NewCredentialManager defaults to adb.NewCredentialManager.
	NewCredentialManager func(keystore.Storage) adb.CredentialManager
	// Recorder is optional.
	Recorder Recorder
	Logger   zerolog.Logger
}

// Controller is the device session controller. It has no reentrancy guard:
// callers must not start Connect while connected or while another Connect
// is running.
type Controller struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	client    *adb.Client
	state     State
	sessionID int64
	subs      map[int]func(State)
	nextSub   int
}

// New returns a disconnected Controller.
func New(opts Options) *Controller {
	if opts.NewStorage == nil {
		opts.NewStorage = func() keystore.Storage { return keystore.NewMemory() }
	}
	if opts.NewCredentialManager == nil {
		opts.NewCredentialManager = func(s keystore.Storage) adb.CredentialManager {
			return adb.NewCredentialManager(s)
		}
	}
	return &Controller{
		opts:  opts,
		log:   opts.Logger,
		state: State{Status: StatusIdle},
		subs:  make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called with every new state. The returned
// function unregisters it.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// set replaces the state and notifies subscribers outside the lock.
func (c *Controller) set(client *adb.Client, st State) {
	c.mu.Lock()
	c.client = client
	c.state = st
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// Connect runs one full connect sequence. On failure the state is reset to
// disconnected with a failure status, anything opened by this attempt is
// closed, and the classified *Error is returned.
func (c *Controller) Connect(ctx context.Context) error {
	client, info, err := c.connect(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("kind", err.Kind.String()).Msg("connection failed")
		c.set(nil, State{Status: statusFailed + ": " + err.Kind.String(), Err: err})
		return err
	}

	serial := client.Serial()
	c.logInfo(info)
	c.set(client, State{
		Connected: true,
		Serial:    serial,
		Status:    statusConnected + serial,
		Info:      info,
	})
	c.recordConnect(serial, info)
	return nil
}

func (c *Controller) connect(ctx context.Context) (*adb.Client, DeviceInfo, *Error) {
	if c.opts.Devices == nil || !c.opts.Devices.Available() {
		return nil, nil, fail(KindEnvironmentUnsupported, ErrUnsupported)
	}

	dev, err := c.opts.Devices.RequestDevice(ctx)
	if err != nil {
		return nil, nil, fail(KindNoDeviceSelected, err)
	}
	if dev == nil {
		return nil, nil, fail(KindNoDeviceSelected, ErrNoDevice)
	}

	conn, err := dev.Connect(ctx)
	if err != nil {
		return nil, nil, fail(KindConnectionOpenFailed, err)
	}

	creds := c.opts.NewCredentialManager(c.opts.NewStorage())
	transport, err := c.opts.Authenticator.Authenticate(ctx, adb.AuthParams{
		Serial:            dev.Serial(),
		Connection:        conn,
		CredentialManager: creds,
	})
	if err != nil {
		c.closeQuietly("connection", conn.Close)
		return nil, nil, fail(KindAuthenticationFailed, err)
	}

	client := adb.NewClient(transport)
	info, err := readInfo(ctx, client, transport.Serial())
	if err != nil {
		c.closeQuietly("client", client.Close)
		return nil, nil, fail(KindPropertyReadFailed, err)
	}
	return client, info, nil
}

// readInfo reads the four properties one after another.
func readInfo(ctx context.Context, client *adb.Client, serial string) (DeviceInfo, error) {
	props := []string{PropModel, PropManufacturer, PropSDK, PropRelease}
	values := make(map[string]string, len(props))
	for _, p := range props {
		v, err := client.GetProp(ctx, p)
		if err != nil {
			return nil, err
		}
		values[p] = v
	}
	return DeviceInfo{
		{LabelModel, values[PropModel]},
		{LabelManufacturer, values[PropManufacturer]},
		{LabelAndroidVersion, values[PropRelease]},
		{LabelSDK, values[PropSDK]},
		{LabelSerial, serial},
	}, nil
}

// Disconnect closes the session. It is a no-op when not connected. A close
// failure is logged and returned, but the state is reset regardless.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	id := c.sessionID
	c.sessionID = 0
	c.mu.Unlock()
	if client == nil {
		return nil
	}

	var closeErr error
	if err := client.Close(); err != nil {
		closeErr = fail(KindCloseFailed, err)
		c.log.Warn().Err(err).Msg("disconnect error")
	}
	c.set(nil, State{Status: StatusDisconnected})
	c.recordDisconnect(id)
	return closeErr
}

func (c *Controller) closeQuietly(what string, fn func() error) {
	if err := fn(); err != nil {
		c.log.Debug().Err(err).Str("resource", what).Msg("cleanup after failed connect")
	}
}

func (c *Controller) logInfo(info DeviceInfo) {
	ev := c.log.Info()
	for _, f := range info {
		ev = ev.Str(f.Label, f.Value)
	}
	ev.Msg("adb connected")
}

func (c *Controller) recordConnect(serial string, info DeviceInfo) {
	if c.opts.Recorder == nil {
		return
	}
	m := info.Map()
	id, err := c.opts.Recorder.RecordConnect(serial, m[LabelModel], m[LabelManufacturer], m[LabelAndroidVersion], m[LabelSDK])
	if err != nil {
		c.log.Warn().Err(err).Msg("record session")
		return
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Controller) recordDisconnect(id int64) {
	if c.opts.Recorder == nil || id == 0 {
		return
	}
	if err := c.opts.Recorder.RecordDisconnect(id); err != nil {
		c.log.Warn().Err(err).Msg("record disconnect")
	}
}
