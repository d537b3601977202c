// Package web serves the session view to a browser over HTTPS.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/session"
)

// Controller is the part of session.Controller the web view drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	State() session.State
}

var errBusy = errors.New("another operation is in progress")

// Server is the HTTPS view.
type Server struct {
	ctx  context.Context
	ctrl Controller
	log  zerolog.Logger
	busy atomic.Bool

	// Nickname returns a display name for a serial, or "".
	Nickname func(serial string) string
}

// New returns a Server driving ctrl. Operations run with ctx, not with the
// request context, so a closed browser tab does not abort a connect.
func New(ctx context.Context, ctrl Controller, log zerolog.Logger) *Server {
	return &Server{ctx: ctx, ctrl: ctrl, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)

	post := r.Methods(http.MethodPost).Subrouter()
	post.Use(s.sameOrigin)
	post.HandleFunc("/connect", s.formAction(s.connect))
	post.HandleFunc("/disconnect", s.formAction(s.disconnect))
	post.HandleFunc("/api/connect", s.apiAction(s.connect))
	post.HandleFunc("/api/disconnect", s.apiAction(s.disconnect))
	return r
}

// sameOrigin rejects requests another site's page made the browser send.
func (s *Server) sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sameOriginRequest(r) {
			s.log.Warn().
				Str("request_id", requestIDFrom(r)).
				Str("origin", r.Header.Get("Origin")).
				Str("sec_fetch_site", r.Header.Get("Sec-Fetch-Site")).
				Msg("cross-origin request rejected")
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "cross-origin request"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOriginRequest(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ListenAndServeTLS serves until ctx is done.
func (s *Server) ListenAndServeTLS(ctx context.Context, addr string, cert tls.Certificate) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServeTLS("", "")
	}()
	s.log.Info().Str("addr", "https://"+addr).Msg("serving")

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type ctxKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		s.log.Debug().Str("request_id", id).Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// connect and disconnect enforce the same guard the buttons show: connect
// only while disconnected, disconnect only while connected, never both at
// once.
func (s *Server) connect() (int, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return http.StatusConflict, errBusy
	}
	defer s.busy.Store(false)
	if s.ctrl.State().Connected {
		return http.StatusConflict, errors.New("already connected")
	}
	// Failures are reported through the state's status.
	s.ctrl.Connect(s.ctx)
	return http.StatusOK, nil
}

func (s *Server) disconnect() (int, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return http.StatusConflict, errBusy
	}
	defer s.busy.Store(false)
	if !s.ctrl.State().Connected {
		return http.StatusConflict, errors.New("not connected")
	}
	s.ctrl.Disconnect(s.ctx)
	return http.StatusOK, nil
}

func (s *Server) apiAction(op func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := op()
		if err != nil {
			s.log.Info().Str("request_id", requestIDFrom(r)).Err(err).Msg("rejected")
			writeJSON(w, code, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, code, s.stateResponse())
	}
}

func (s *Server) formAction(op func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := op(); err != nil {
			s.log.Info().Str("request_id", requestIDFrom(r)).Err(err).Msg("rejected")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// StateResponse is the JSON form of a session state.
type StateResponse struct {
	Connected bool               `json:"connected"`
	Serial    string             `json:"serial,omitempty"`
	Nickname  string             `json:"nickname,omitempty"`
	Status    string             `json:"status"`
	Info      session.DeviceInfo `json:"info"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
}

func (s *Server) stateResponse() StateResponse {
	st := s.ctrl.State()
	resp := StateResponse{
		Connected: st.Connected,
		Serial:    st.Serial,
		Status:    st.Status,
		Info:      st.Info,
	}
	if s.Nickname != nil && st.Serial != "" {
		resp.Nickname = s.Nickname(st.Serial)
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
		resp.ErrorKind = session.KindOf(st.Err).String()
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stateResponse())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Connected bool
		Failed    bool
		Status    string
		Info      session.DeviceInfo
	}{st.Connected, st.Failed(), st.Status, st.Info}
	if err := pageTmpl.Execute(w, data); err != nil {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r)).Msg("render page")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
