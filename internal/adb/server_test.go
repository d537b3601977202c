package adb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/electricbubble/gadb"
	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/keystore"
)

// fakeADB writes an adb stand-in that appends its arguments to a log file.
func fakeADB(t *testing.T) (binary, logFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for adb")
	}
	dir := t.TempDir()
	logFile = filepath.Join(dir, "adb.log")
	binary = filepath.Join(dir, "adb")
	script := "#!/bin/sh\necho \"$* keys=$ADB_VENDOR_KEYS\" >> " + logFile + "\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary, logFile
}

func startServerCalls(t *testing.T, logFile string) int {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "start-server")
}

func TestRestartOffersRegeneratedKey(t *testing.T) {
	binary, logFile := fakeADB(t)
	srv := NewServer(binary, "localhost", 5037, zerolog.Nop())
	a := newTestAuthenticator(srv, t.TempDir(), 10*time.Millisecond)

	attempt := func(creds CredentialManager) {
		t.Helper()
		dev := &fakeDevice{
			serial: "ABC123",
			states: []gadb.DeviceState{gadb.DeviceState("")},
			errs:   []error{errUnauthorized},
		}
		_, err := a.Authenticate(context.Background(), AuthParams{
			Serial:            "ABC123",
			Connection:        &ServerConnection{dev: dev},
			CredentialManager: creds,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Authenticate = %v, want ErrUnauthorized", err)
		}
	}

	// Each attempt with fresh memory storage generates a new adbkey under the
	// same file name; the server must be restarted to offer it.
	attempt(NewCredentialManager(keystore.NewMemory()))
	attempt(NewCredentialManager(keystore.NewMemory()))
	if n := startServerCalls(t, logFile); n != 2 {
		t.Fatalf("start-server ran %d times, want 2", n)
	}

	// The same key material does not restart again.
	kept := keystore.NewMemory()
	attempt(NewCredentialManager(kept))
	attempt(NewCredentialManager(kept))
	if n := startServerCalls(t, logFile); n != 3 {
		t.Errorf("start-server ran %d times, want 3", n)
	}
}
