package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/session"
)

type fakeController struct {
	mu          sync.Mutex
	state       session.State
	connects    int
	disconnects int
	block       chan struct{}
}

var connectedState = session.State{
	Connected: true,
	Serial:    "ABC123",
	Status:    "✅ Connected to ABC123",
	Info: session.DeviceInfo{
		{Label: session.LabelModel, Value: "Pixel"},
		{Label: session.LabelManufacturer, Value: "Google"},
		{Label: session.LabelAndroidVersion, Value: "14"},
		{Label: session.LabelSDK, Value: "34"},
		{Label: session.LabelSerial, Value: "ABC123"},
	},
}

func (f *fakeController) Connect(ctx context.Context) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.state = connectedState
	return nil
}

func (f *fakeController) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = session.State{Status: session.StatusDisconnected}
	return nil
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func newTestServer(ctrl *fakeController) *Server {
	return New(context.Background(), ctrl, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var resp StateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeController{}).Handler(), http.MethodGet, "/health")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response lacks X-Request-Id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestServer(&fakeController{}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc" {
		t.Errorf("X-Request-Id = %q, want abc", got)
	}
}

func TestAPIConnectDisconnect(t *testing.T) {
	ctrl := &fakeController{state: session.State{Status: session.StatusIdle}}
	srv := newTestServer(ctrl)
	srv.Nickname = func(serial string) string { return "desk phone" }
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/state")
	if got := decodeState(t, rec); got.Connected || got.Status != session.StatusIdle {
		t.Fatalf("initial state = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/connect")
	if rec.Code != http.StatusOK {
		t.Fatalf("connect = %d: %s", rec.Code, rec.Body.String())
	}
	want := StateResponse{
		Connected: true,
		Serial:    "ABC123",
		Nickname:  "desk phone",
		Status:    "✅ Connected to ABC123",
		Info:      connectedState.Info,
	}
	if diff := cmp.Diff(want, decodeState(t, rec)); diff != "" {
		t.Errorf("connect state (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodPost, "/api/connect"); rec.Code != http.StatusConflict {
		t.Errorf("connect while connected = %d, want 409", rec.Code)
	}
	if ctrl.connects != 1 {
		t.Errorf("Connect called %d times, want 1", ctrl.connects)
	}

	rec = do(t, h, http.MethodPost, "/api/disconnect")
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect = %d", rec.Code)
	}
	if got := decodeState(t, rec); got.Connected || got.Status != session.StatusDisconnected || got.Info != nil {
		t.Errorf("state after disconnect = %+v", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/disconnect"); rec.Code != http.StatusConflict {
		t.Errorf("disconnect while disconnected = %d, want 409", rec.Code)
	}
}

func TestConnectInFlightConflicts(t *testing.T) {
	ctrl := &fakeController{state: session.State{Status: session.StatusIdle}, block: make(chan struct{})}
	srv := newTestServer(ctrl)
	h := srv.Handler()

	done := make(chan int)
	go func() {
		done <- do(t, h, http.MethodPost, "/api/connect").Code
	}()
	for !srv.busy.Load() {
		runtime.Gosched()
	}
	if rec := do(t, h, http.MethodPost, "/api/disconnect"); rec.Code != http.StatusConflict {
		t.Errorf("disconnect during connect = %d, want 409", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/connect"); rec.Code != http.StatusConflict {
		t.Errorf("concurrent connect = %d, want 409", rec.Code)
	}
	close(ctrl.block)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first connect = %d", code)
	}
	if ctrl.connects != 1 {
		t.Errorf("Connect called %d times, want 1", ctrl.connects)
	}
}

func TestFormActionsRedirect(t *testing.T) {
	ctrl := &fakeController{state: session.State{Status: session.StatusIdle}}
	h := newTestServer(ctrl).Handler()

	rec := do(t, h, http.MethodPost, "/connect")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("form connect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if !ctrl.State().Connected {
		t.Error("form connect did not connect")
	}
}

func TestPage(t *testing.T) {
	ctrl := &fakeController{state: session.State{Status: session.StatusIdle}}
	h := newTestServer(ctrl).Handler()

	body := do(t, h, http.MethodGet, "/").Body.String()
	if !strings.Contains(body, session.StatusIdle) {
		t.Error("page lacks idle status")
	}
	if strings.Contains(body, "Device Info") {
		t.Error("info panel rendered while disconnected")
	}
	if !strings.Contains(body, `action="/disconnect"><button type="submit" disabled>`) {
		t.Error("disconnect button not disabled while disconnected")
	}

	ctrl.state = connectedState
	body = do(t, h, http.MethodGet, "/").Body.String()
	for _, want := range []string{"Device Info", "<strong>Model:</strong> Pixel", "<strong>SDK:</strong> 34", `class="status ok"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page lacks %q", want)
		}
	}
	if !strings.Contains(body, `action="/connect"><button type="submit" disabled>`) {
		t.Error("connect button not disabled while connected")
	}
}

func TestLoadOrCreateCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "tls", "cert.pem")
	keyFile := filepath.Join(dir, "tls", "key.pem")

	first, err := LoadOrCreateCertificate(certFile, keyFile)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %o, want 600", perm)
	}

	second, err := LoadOrCreateCertificate(certFile, keyFile)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(first.Certificate, second.Certificate); diff != "" {
		t.Errorf("certificate regenerated on reload (-first +second):\n%s", diff)
	}
	if expired(second) {
		t.Error("fresh certificate reported expired")
	}
}

func TestCrossOriginPostsRejected(t *testing.T) {
	for _, tc := range []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"foreign origin", map[string]string{"Origin": "https://evil.example"}, http.StatusForbidden},
		{"cross-site fetch", map[string]string{"Sec-Fetch-Site": "cross-site"}, http.StatusForbidden},
		{"opaque origin", map[string]string{"Origin": "null"}, http.StatusForbidden},
		{"same origin", map[string]string{"Origin": "https://example.com", "Sec-Fetch-Site": "same-origin"}, http.StatusOK},
		{"no browser headers", nil, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, path := range []string{"/api/connect", "/connect"} {
				ctrl := &fakeController{state: session.State{Status: session.StatusIdle}}
				h := newTestServer(ctrl).Handler()

				req := httptest.NewRequest(http.MethodPost, path, nil)
				for k, v := range tc.headers {
					req.Header.Set(k, v)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				if tc.want == http.StatusForbidden {
					if rec.Code != http.StatusForbidden {
						t.Errorf("POST %s = %d, want 403", path, rec.Code)
					}
					if ctrl.connects != 0 {
						t.Errorf("POST %s called Connect %d times", path, ctrl.connects)
					}
					continue
				}
				if rec.Code == http.StatusForbidden || ctrl.connects != 1 {
					t.Errorf("POST %s = %d with %d connects, want accepted", path, rec.Code, ctrl.connects)
				}
			}
		})
	}
}

func TestCrossOriginDisconnectRejected(t *testing.T) {
	ctrl := &fakeController{state: connectedState}
	h := newTestServer(ctrl).Handler()
	req := httptest.NewRequest(http.MethodPost, "/disconnect", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || ctrl.disconnects != 0 || !ctrl.State().Connected {
		t.Errorf("cross-origin disconnect = %d, disconnects=%d", rec.Code, ctrl.disconnects)
	}
}
