// Package backend is the demo upstream the proxy fronts in development and
// in the end-to-end tests.
package backend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	MsgRoot          = "✅ SUCCESS: Data received from backend server (port 3001) through proxy (port 3000) - Connection verified!"
	MsgTest          = "Hello World - Web Server Resource"
	MsgLoginOK       = "Login successful"
	MsgBodyRequired  = "Request body required"
	MsgBadCredential = "Invalid credentials"
	MsgInvalidJSON   = "Invalid JSON"
)

const maxBodyBytes = 10 << 20

// Server is the demo backend.
type Server struct {
	username string
	hash     []byte
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// New hashes the configured password and builds the router. cost is the
// bcrypt cost; zero means bcrypt.DefaultCost.
func New(cfg core.BackendConfig, cost int, logger zerolog.Logger) (*Server, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("backend username and password are required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing backend password: %w", err)
	}

	s := &Server{
		username: cfg.Username,
		hash:     hash,
		logger:   logger.With().Str("component", "backend").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/test", s.handleTest).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	s.handler = r

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("backend server starting")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("backend server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the backend.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, MsgRoot)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, MsgTest)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		writeText(w, http.StatusBadRequest, MsgBodyRequired)
		return
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeText(w, http.StatusUnauthorized, MsgBadCredential)
			return
		}
		writeText(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	if !s.checkCredentials(creds) {
		s.logger.Info().Str("username", creds.Username).Str("ip", r.RemoteAddr).Msg("login failed")
		writeText(w, http.StatusUnauthorized, MsgBadCredential)
		return
	}
	writeText(w, http.StatusOK, MsgLoginOK)
}

func (s *Server) checkCredentials(c credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(s.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.hash, []byte(c.Password)) == nil
	return userOK && passOK
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
