// Package proxy is the HTTP front end: it validates every inbound request,
// relays allowed ones to the backend and serves the log read-back and admin
// endpoints.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/guard"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/modules/signature"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// readableLogs are the only files exposed by /logs/{filename}/read.
var readableLogs = map[string]bool{
	core.FileName(core.SeverityCritical): true,
	core.FileName(core.SeverityHigh):     true,
	core.FileName(core.SeverityMedium):   true,
}

// Server is the validating reverse proxy.
type Server struct {
	engine    *core.Engine
	store     *guard.Store
	matcher   *signature.Matcher
	validator *guard.Validator
	relay     *Relay
	handler   http.Handler
	server    *http.Server
	listener  net.Listener
	logger    zerolog.Logger
}

// NewServer wires the validation engine and relay around a started engine.
func NewServer(engine *core.Engine) (*Server, error) {
	if engine.SecLog == nil {
		return nil, errors.New("engine must be started before creating the proxy server")
	}
	cfg := engine.Config
	logger := engine.Logger.With().Str("component", "proxy_server").Logger()

	store, err := guard.NewStore(guard.StoreOptions{
		MaxClients:    cfg.Limits.MaxClients,
		SweepInterval: cfg.Limits.CleanupInterval,
		Retention:     cfg.Limits.Retention,
	}, engine.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating client store: %w", err)
	}

	relay, err := NewRelay(RelayOptions{
		Upstream:        cfg.Proxy.Upstream,
		DialTimeout:     cfg.Proxy.DialTimeout,
		ResponseTimeout: cfg.Proxy.ResponseTimeout,
		IdleTimeout:     cfg.Proxy.IdleTimeout,
	}, engine.Logger)
	if err != nil {
		return nil, err
	}

	matcher := signature.New()
	limits := guard.Limits{
		General: guard.Limit{Max: cfg.Limits.General.Max, Window: cfg.Limits.General.Window},
		Login:   guard.Limit{Max: cfg.Limits.Login.Max, Window: cfg.Limits.Login.Window},
	}

	s := &Server{
		engine:    engine,
		store:     store,
		matcher:   matcher,
		validator: guard.NewValidator(store, matcher, engine.SecLog, limits, engine.Logger),
		relay:     relay,
		logger:    logger,
	}

	builder := guard.DescriptorBuilder{MaxBodyBytes: cfg.Proxy.MaxBodyBytes}
	validate := func(next http.Handler) http.Handler {
		return validationMiddleware(next, builder, s.validator, logger)
	}

	// Only the log reader bypasses validation.
	r := mux.NewRouter().SkipClean(true)
	r.Handle("/health", validate(http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	r.HandleFunc("/logs/{filename}/read", s.handleLogRead).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(validate, authMiddleware(cfg, logger))
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(validate(s.forward(cfg.Proxy.StaticDir)))

	s.handler = loggingMiddleware(r, logger)
	s.server = &http.Server{
		Addr:              cfg.ProxyAddr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listen address, starts the state sweep and serves in the
// background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.store.Start(ctx)

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("upstream", s.engine.Config.Proxy.Upstream).
		Msg("proxy server starting")
	if s.engine.Config.AuthEnabled() {
		s.logger.Info().Int("keys", len(s.engine.Config.Proxy.APIKeys)).Msg("admin API authentication enabled")
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("proxy server error")
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

// Stop gracefully shuts down the listener and the sweep.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.store.Stop()
	return err
}

// forward serves an existing file from staticDir, or relays upstream.
func (s *Server) forward(staticDir string) http.Handler {
	if staticDir == "" {
		return s.relay
	}
	files := http.FileServer(http.Dir(staticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			name := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
			if info, err := os.Stat(name); err == nil {
				if !info.IsDir() {
					files.ServeHTTP(w, r)
					return
				}
				if _, err := os.Stat(filepath.Join(name, "index.html")); err == nil {
					files.ServeHTTP(w, r)
					return
				}
			}
		}
		s.relay.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleLogRead(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if !readableLogs[filename] {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Log file not found"})
		return
	}

	data, err := os.ReadFile(filepath.Join(s.engine.SecLog.Dir(), filename))
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Log file does not exist"})
			return
		}
		s.logger.Error().Err(err).Str("file", filename).Msg("failed to read log file")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read log file"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": filename,
		"content":  string(data),
		"size":     len(data),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	stats["clients"] = s.store.Stats()
	stats["validator"] = s.validator.Stats()
	stats["signatures"] = map[string]interface{}{
		"matches":  s.matcher.Stats(),
		"patterns": s.matcher.Patterns(),
	}
	stats["relay"] = s.relay.Stats()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}
	events := s.engine.Events.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
