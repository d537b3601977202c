package adb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// serverRestarter restarts the adb server with a set of vendor keys.
type serverRestarter interface {
	Restart(ctx context.Context, keys VendorKeys) error
}

// DaemonAuthenticator authorizes a ServerConnection. The adb server owns the
// RSA handshake; this hands it our keys and waits for the device to accept.
type DaemonAuthenticator struct {
	server       serverRestarter
	keyDir       string
	timeout      time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewDaemonAuthenticator returns an authenticator that installs keys into
// keyDir and waits up to timeout for the device to authorize them.
func NewDaemonAuthenticator(server *Server, keyDir string, timeout time.Duration, log zerolog.Logger) *DaemonAuthenticator {
	return &DaemonAuthenticator{
		server:       server,
		keyDir:       keyDir,
		timeout:      timeout,
		pollInterval: 500 * time.Millisecond,
		log:          log,
	}
}

// Authenticate returns a transport once the device reports "device" state.
// An unauthorized or offline device triggers one server restart with our
// vendor keys, after which the user has to accept the prompt on the device.
func (a *DaemonAuthenticator) Authenticate(ctx context.Context, p AuthParams) (Transport, error) {
	conn, ok := p.Connection.(*ServerConnection)
	if !ok {
		return nil, fmt.Errorf("authenticate %s: unsupported connection %T", p.Serial, p.Connection)
	}
	if p.CredentialManager == nil {
		return nil, errors.New("authenticate: no credential manager")
	}
	keys, err := p.CredentialManager.PrivateKeys()
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", p.Serial, err)
	}
	vendorKeys, err := installVendorKeys(a.keyDir, keys)
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", p.Serial, err)
	}

	if conn.State() == StateOnline {
		return &serverTransport{conn: conn}, nil
	}

	a.log.Info().Str("serial", p.Serial).Int("keys", len(keys)).Msg("device not authorized, offering keys")
	if err := a.server.Restart(ctx, vendorKeys); err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", p.Serial, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	last := StateUnknown
	for {
		if st := conn.State(); st == StateOnline {
			a.log.Info().Str("serial", p.Serial).Msg("device authorized")
			return &serverTransport{conn: conn}, nil
		} else if st != last {
			a.log.Debug().Str("serial", p.Serial).Str("state", string(st)).Msg("waiting for authorization")
			last = st
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("authenticate %s (last state %s): %w: %w", p.Serial, last, ErrUnauthorized, ctx.Err())
		case <-ticker.C:
		}
	}
}
