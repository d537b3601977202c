package adb

import (
	"context"
	"crypto/rsa"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/electricbubble/gadb"
	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/keystore"
)

type fakeTransport struct {
	serial   string
	props    map[string]string
	shellErr error
	closeErr error
	closed   int
}

func (f *fakeTransport) Serial() string { return f.serial }

func (f *fakeTransport) Shell(ctx context.Context, cmd string, args ...string) (string, error) {
	if f.shellErr != nil {
		return "", f.shellErr
	}
	if cmd != "getprop" || len(args) != 1 {
		return "", errors.New("unexpected command")
	}
	return f.props[args[0]] + "\r\n", nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return f.closeErr
}

func TestClientGetProp(t *testing.T) {
	tr := &fakeTransport{serial: "ABC123", props: map[string]string{"ro.product.model": "Pixel"}}
	c := NewClient(tr)

	got, err := c.GetProp(context.Background(), "ro.product.model")
	if err != nil {
		t.Fatalf("GetProp: %v", err)
	}
	if got != "Pixel" {
		t.Errorf("GetProp = %q, want Pixel", got)
	}
	if c.Serial() != "ABC123" {
		t.Errorf("Serial = %q", c.Serial())
	}
}

func TestClientGetPropError(t *testing.T) {
	boom := errors.New("boom")
	c := NewClient(&fakeTransport{shellErr: boom})
	if _, err := c.GetProp(context.Background(), "ro.build.version.sdk"); !errors.Is(err, boom) {
		t.Fatalf("GetProp err = %v, want wrapping %v", err, boom)
	}
}

func TestClientClose(t *testing.T) {
	tr := &fakeTransport{serial: "ABC123"}
	c := NewClient(tr)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if tr.closed != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closed)
	}
	if _, err := c.GetProp(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("GetProp after Close = %v, want ErrClosed", err)
	}
}

func TestClientCloseError(t *testing.T) {
	boom := errors.New("usb gone")
	c := NewClient(&fakeTransport{serial: "S", closeErr: boom})
	if err := c.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close = %v, want wrapping %v", err, boom)
	}
}

// fakeDevice plays back a sequence of states; the last one repeats.
type fakeDevice struct {
	mu     sync.Mutex
	serial string
	states []gadb.DeviceState
	errs   []error
	calls  int
	shell  func(cmd string, args ...string) (string, error)
}

func (d *fakeDevice) Serial() string { return d.serial }

func (d *fakeDevice) State() (gadb.DeviceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	if i >= len(d.states) {
		i = len(d.states) - 1
	}
	d.calls++
	return d.states[i], d.errs[i]
}

func (d *fakeDevice) RunShellCommand(cmd string, args ...string) (string, error) {
	if d.shell == nil {
		return "", nil
	}
	return d.shell(cmd, args...)
}

var errUnauthorized = errors.New("device unauthorized.\nThis adb server's $ADB_VENDOR_KEYS is not set")

type fakeRestarter struct {
	keys  []VendorKeys
	err   error
	after func()
}

func (r *fakeRestarter) Restart(ctx context.Context, keys VendorKeys) error {
	r.keys = append(r.keys, keys)
	if r.after != nil {
		r.after()
	}
	return r.err
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

type staticCreds struct{ keys []PrivateKey }

func (s staticCreds) PrivateKeys() ([]PrivateKey, error) { return s.keys, nil }

func testCreds(t *testing.T) staticCreds {
	t.Helper()
	testKeyOnce.Do(func() {
		m := NewCredentialManager(keystore.NewMemory())
		k, err := m.Generate("test")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		testKey = k.Key
	})
	return staticCreds{keys: []PrivateKey{{Name: "test", Key: testKey}}}
}

func newTestAuthenticator(r serverRestarter, dir string, timeout time.Duration) *DaemonAuthenticator {
	return &DaemonAuthenticator{
		server:       r,
		keyDir:       dir,
		timeout:      timeout,
		pollInterval: time.Millisecond,
		log:          zerolog.Nop(),
	}
}

func TestAuthenticateOnlineDevice(t *testing.T) {
	dev := &fakeDevice{
		serial: "ABC123",
		states: []gadb.DeviceState{gadb.StateOnline},
		errs:   []error{nil},
		shell: func(cmd string, args ...string) (string, error) {
			return "14\n", nil
		},
	}
	r := &fakeRestarter{}
	dir := t.TempDir()
	a := newTestAuthenticator(r, dir, time.Second)

	tr, err := a.Authenticate(context.Background(), AuthParams{
		Serial:            "ABC123",
		Connection:        &ServerConnection{dev: dev},
		CredentialManager: testCreds(t),
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tr.Serial() != "ABC123" {
		t.Errorf("Serial = %q", tr.Serial())
	}
	if len(r.keys) != 0 {
		t.Errorf("server restarted for an online device: %v", r.keys)
	}
	if _, err := os.Stat(filepath.Join(dir, "test.adb_key")); err != nil {
		t.Errorf("vendor key not installed: %v", err)
	}

	out, err := tr.Shell(context.Background(), "getprop", "ro.build.version.release")
	if err != nil || out != "14\n" {
		t.Errorf("Shell = %q, %v", out, err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := tr.Shell(context.Background(), "getprop", "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Shell after Close = %v, want ErrClosed", err)
	}
}

func TestAuthenticateWaitsForApproval(t *testing.T) {
	dev := &fakeDevice{
		serial: "ABC123",
		states: []gadb.DeviceState{gadb.DeviceState(""), gadb.DeviceState(""), gadb.DeviceState(""), gadb.StateOnline},
		errs:   []error{errUnauthorized, errUnauthorized, errUnauthorized, nil},
	}
	r := &fakeRestarter{}
	dir := t.TempDir()
	a := newTestAuthenticator(r, dir, 5*time.Second)

	if _, err := a.Authenticate(context.Background(), AuthParams{
		Serial:            "ABC123",
		Connection:        &ServerConnection{dev: dev},
		CredentialManager: testCreds(t),
	}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(r.keys) != 1 {
		t.Fatalf("Restart called %d times, want 1", len(r.keys))
	}
	if want := filepath.Join(dir, "test.adb_key"); r.keys[0].Paths != want {
		t.Errorf("ADB_VENDOR_KEYS = %q, want %q", r.keys[0].Paths, want)
	}
}

func TestAuthenticateTimesOut(t *testing.T) {
	dev := &fakeDevice{
		serial: "ABC123",
		states: []gadb.DeviceState{gadb.DeviceState("")},
		errs:   []error{errUnauthorized},
	}
	a := newTestAuthenticator(&fakeRestarter{}, t.TempDir(), 20*time.Millisecond)

	_, err := a.Authenticate(context.Background(), AuthParams{
		Serial:            "ABC123",
		Connection:        &ServerConnection{dev: dev},
		CredentialManager: testCreds(t),
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Authenticate = %v, want ErrUnauthorized", err)
	}
	if !strings.Contains(err.Error(), string(StateUnauthorized)) {
		t.Errorf("error %q does not name the last state", err)
	}
}

func TestAuthenticateRestartFailure(t *testing.T) {
	boom := errors.New("no adb binary")
	dev := &fakeDevice{
		serial: "ABC123",
		states: []gadb.DeviceState{gadb.StateOffline},
		errs:   []error{nil},
	}
	a := newTestAuthenticator(&fakeRestarter{err: boom}, t.TempDir(), time.Second)
	_, err := a.Authenticate(context.Background(), AuthParams{
		Serial:            "ABC123",
		Connection:        &ServerConnection{dev: dev},
		CredentialManager: testCreds(t),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Authenticate = %v, want wrapping %v", err, boom)
	}
}

type otherConn struct{}

func (otherConn) Serial() string { return "x" }
func (otherConn) Close() error   { return nil }

func TestAuthenticateRejectsForeignConnection(t *testing.T) {
	a := newTestAuthenticator(&fakeRestarter{}, t.TempDir(), time.Second)
	if _, err := a.Authenticate(context.Background(), AuthParams{
		Serial:            "x",
		Connection:        otherConn{},
		CredentialManager: testCreds(t),
	}); err == nil {
		t.Fatal("Authenticate succeeded with a foreign connection")
	}
}

func TestStateOf(t *testing.T) {
	for _, tc := range []struct {
		state gadb.DeviceState
		err   error
		want  State
	}{
		{gadb.StateOnline, nil, StateOnline},
		{gadb.StateOffline, nil, StateOffline},
		{gadb.DeviceState(""), errUnauthorized, StateUnauthorized},
		{gadb.DeviceState(""), errors.New("closed"), StateUnknown},
		{gadb.DeviceState("disconnected"), nil, StateUnknown},
	} {
		dev := &fakeDevice{states: []gadb.DeviceState{tc.state}, errs: []error{tc.err}}
		if got := stateOf(dev); got != tc.want {
			t.Errorf("stateOf(%q, %v) = %q, want %q", tc.state, tc.err, got, tc.want)
		}
	}
}

func TestShellHonorsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	dev := &fakeDevice{
		serial: "S",
		states: []gadb.DeviceState{gadb.StateOnline},
		errs:   []error{nil},
		shell: func(string, ...string) (string, error) {
			<-block
			return "", nil
		},
	}
	tr := &serverTransport{conn: &ServerConnection{dev: dev}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := tr.Shell(ctx, "getprop", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shell = %v, want deadline exceeded", err)
	}
}

func TestConnType(t *testing.T) {
	if connType("192.168.1.5:5555") != WiFi {
		t.Error("ip:port serial should be wifi")
	}
	if connType("ABC123") != USB {
		t.Error("plain serial should be usb")
	}
	if !(ServerDevice{State: StateOnline}).IsOnline() {
		t.Error("device state should be online")
	}
}
