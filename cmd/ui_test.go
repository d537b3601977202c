package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/adb"
	"github.com/FluidXR/adbinfo/internal/session"
)

// blockingDevices holds RequestDevice until its context is done.
type blockingDevices struct {
	started chan struct{}
}

func (d *blockingDevices) Available() bool { return true }

func (d *blockingDevices) RequestDevice(ctx context.Context) (adb.Device, error) {
	close(d.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCloseSessionStopsRunningConnect(t *testing.T) {
	devices := &blockingDevices{started: make(chan struct{})}
	ctrl := &trackedController{Controller: session.New(session.Options{
		Devices: devices,
		Logger:  zerolog.Nop(),
	})}

	viewCtx, cancel := context.WithCancel(context.Background())
	connectErr := make(chan error, 1)
	go func() {
		connectErr <- ctrl.Connect(viewCtx)
	}()
	<-devices.started

	done := make(chan struct{})
	go func() {
		closeSession(context.Background(), cancel, ctrl, zerolog.Nop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("closeSession did not return while a connect was running")
	}

	select {
	case err := <-connectErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Connect = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connect still running after closeSession")
	}
	if ctrl.State().Connected {
		t.Error("connected after closeSession")
	}

	if err := ctrl.Connect(context.Background()); !errors.Is(err, errViewClosed) {
		t.Errorf("Connect after close = %v, want errViewClosed", err)
	}
}
