package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/electricbubble/gadb"
	"github.com/rs/zerolog"
)

// deviceAPI is the subset of gadb.Device used by connections and transports.
type deviceAPI interface {
	Serial() string
	State() (gadb.DeviceState, error)
	RunShellCommand(cmd string, args ...string) (string, error)
}

// Server is an adb server reached over its host:port socket. Commands that
// the socket protocol cannot express (starting and stopping the server) go
// through the adb binary.
type Server struct {
	Binary string
	Host   string
	Port   int

	log zerolog.Logger

	mu   sync.Mutex
	keys VendorKeys // keys the running server was started with
}

// NewServer returns a Server for the given adb binary and address.
func NewServer(binary, host string, port int, log zerolog.Logger) *Server {
	return &Server{Binary: binary, Host: host, Port: port, log: log}
}

func (s *Server) client() (gadb.Client, error) {
	c, err := gadb.NewClientWith(s.Host, s.Port)
	if err != nil {
		return gadb.Client{}, fmt.Errorf("adb server %s:%d: %w", s.Host, s.Port, err)
	}
	return c, nil
}

func (s *Server) run(ctx context.Context, env []string, args ...string) error {
	full := append([]string{"-H", s.Host, "-P", strconv.Itoa(s.Port)}, args...)
	cmd := exec.CommandContext(ctx, s.Binary, full...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("adb %s: %w\n%s", strings.Join(args, " "), err, out)
	}
	return nil
}

// Start starts the server if it is not running. Non-empty keys are passed
// as ADB_VENDOR_KEYS so the server offers them to devices.
func (s *Server) Start(ctx context.Context, keys VendorKeys) error {
	var env []string
	if keys.Paths != "" {
		env = append(env, "ADB_VENDOR_KEYS="+keys.Paths)
	}
	if err := s.run(ctx, env, "start-server"); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	s.log.Debug().Str("vendor_keys", keys.Paths).Str("digest", keys.Digest).Msg("adb server started")
	return nil
}

// Kill stops the server.
func (s *Server) Kill(ctx context.Context) error {
	return s.run(ctx, nil, "kill-server")
}

// Restart stops the server and starts it again with keys. It does nothing
// when the running server was already started with the same key material.
func (s *Server) Restart(ctx context.Context, keys VendorKeys) error {
	s.mu.Lock()
	same := s.keys.Digest != "" && s.keys.Digest == keys.Digest
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.Kill(ctx); err != nil {
		// Not running is fine.
		s.log.Debug().Err(err).Msg("adb kill-server")
	}
	return s.Start(ctx, keys)
}

// ensure returns a client, starting the server once if it is unreachable.
func (s *Server) ensure(ctx context.Context) (gadb.Client, error) {
	c, err := s.client()
	if err == nil {
		return c, nil
	}
	s.log.Debug().Err(err).Msg("adb server unreachable, starting it")
	s.mu.Lock()
	keys := s.keys
	s.mu.Unlock()
	if err := s.Start(ctx, keys); err != nil {
		return gadb.Client{}, err
	}
	return s.client()
}

// Devices returns all devices the server knows about.
func (s *Server) Devices(ctx context.Context) ([]ServerDevice, error) {
	c, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	list, err := c.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	devices := make([]ServerDevice, 0, len(list))
	for _, d := range list {
		info := d.DeviceInfo()
		devices = append(devices, ServerDevice{
			Serial:      d.Serial(),
			State:       stateOf(d),
			ConnType:    connType(d.Serial()),
			Model:       info["model"],
			Product:     info["product"],
			TransportID: info["transport_id"],
		})
	}
	return devices, nil
}

// Open returns a connection to the device with the given serial.
func (s *Server) Open(ctx context.Context, serial string) (Connection, error) {
	c, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	list, err := c.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	for _, d := range list {
		if d.Serial() == serial {
			return &ServerConnection{dev: d}, nil
		}
	}
	return nil, fmt.Errorf("open %s: %w", serial, ErrDeviceNotFound)
}

// stateOf maps gadb's state report onto State. gadb reports an unauthorized
// device as an error from get-state rather than as a state.
func stateOf(d deviceAPI) State {
	st, err := d.State()
	if err != nil {
		if strings.Contains(err.Error(), "unauthorized") {
			return StateUnauthorized
		}
		return StateUnknown
	}
	switch st {
	case gadb.StateOnline:
		return StateOnline
	case gadb.StateOffline:
		return StateOffline
	default:
		return StateUnknown
	}
}

// ServerConnection is a device known to the adb server, not yet authorized.
type ServerConnection struct {
	dev deviceAPI

	mu     sync.Mutex
	closed bool
}

// Serial returns the device serial.
func (c *ServerConnection) Serial() string {
	return c.dev.Serial()
}

// State returns the device state as reported by the server.
func (c *ServerConnection) State() State {
	return stateOf(c.dev)
}

// Close releases the connection. The adb server keeps its own USB handle.
func (c *ServerConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *ServerConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// serverTransport is an authorized ServerConnection.
type serverTransport struct {
	conn *ServerConnection
}

func (t *serverTransport) Serial() string {
	return t.conn.Serial()
}

// Shell runs a shell command on the device. gadb has no cancellation, so a
// cancelled ctx returns early and the command finishes in the background.
func (t *serverTransport) Shell(ctx context.Context, cmd string, args ...string) (string, error) {
	if t.conn.isClosed() {
		return "", ErrClosed
	}
	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := t.conn.dev.RunShellCommand(cmd, args...)
		ch <- result{out, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("adb shell %s: %w", cmd, r.err)
		}
		return r.out, nil
	}
}

func (t *serverTransport) Close() error {
	return t.conn.Close()
}
