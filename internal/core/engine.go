package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Engine owns the process-wide plumbing shared by the proxy: configuration,
// the operational logger, the security log and its fan-out targets.
type Engine struct {
	Config  *Config
	Logger  zerolog.Logger
	SecLog  *SecurityLog
	Events  *EventRing
	Bus     *EventBus
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// NewLogger builds a zerolog logger from the logging config.
func NewLogger(cfg LoggingConfig, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch strings.ToLower(cfg.Level) {
	case "debug":
		return logger.Level(zerolog.DebugLevel)
	case "warn":
		return logger.Level(zerolog.WarnLevel)
	case "error":
		return logger.Level(zerolog.ErrorLevel)
	default:
		return logger.Level(zerolog.InfoLevel)
	}
}

// NewEngine creates an engine with a stdout logger. Nothing is started yet.
func NewEngine(cfg *Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	logger := NewLogger(cfg.Logging, os.Stdout)
	return &Engine{
		Config: cfg,
		Logger: logger.With().Str("component", "engine").Logger(),
		Events: NewEventRing(cfg.Proxy.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens the security log and, when enabled, the event bus, and wires
// every written event into the ring, the bus and the operational log.
func (e *Engine) Start() error {
	e.started = time.Now()

	seclog, err := NewSecurityLog(e.Config.SecurityLog, e.Logger)
	if err != nil {
		return fmt.Errorf("starting security log: %w", err)
	}
	e.SecLog = seclog

	seclog.AddHandler(e.Events.Add)
	seclog.AddHandler(func(ev *SecurityEvent) {
		e.Logger.WithLevel(eventLevel(ev.Severity)).
			Str("event_id", ev.ID).
			Str("client", ev.ClientKey).
			Str("type", ev.Type).
			Str("severity", ev.Severity.String()).
			Msg(ev.Details)
	})

	if e.Config.Bus.Enabled {
		bus, err := NewEventBus(&e.Config.Bus, e.Logger)
		if err != nil {
			seclog.Close()
			return fmt.Errorf("starting event bus: %w", err)
		}
		e.Bus = bus
		seclog.AddHandler(func(ev *SecurityEvent) {
			if err := bus.PublishEvent(ev); err != nil {
				e.Logger.Error().Err(err).Str("event_id", ev.ID).Msg("failed to publish event to bus")
			}
		})
	}

	e.Logger.Info().
		Str("security_log_dir", e.Config.SecurityLog.Dir).
		Bool("bus", e.Bus != nil).
		Msg("engine started")
	return nil
}

func eventLevel(sev Severity) zerolog.Level {
	switch sev {
	case SeverityCritical:
		return zerolog.ErrorLevel
	case SeverityHigh, SeverityMedium:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Shutdown drains the security log and closes the bus.
func (e *Engine) Shutdown() error {
	e.Logger.Info().Msg("shutting down engine")
	e.cancel()

	if e.SecLog != nil {
		if err := e.SecLog.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing security log")
		}
	}
	if e.Bus != nil {
		if err := e.Bus.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	e.Logger.Info().Msg("engine stopped")
	return nil
}

// Context returns the engine's context; it is cancelled on Shutdown.
func (e *Engine) Context() context.Context {
	return e.ctx
}

// Uptime returns how long the engine has been running.
func (e *Engine) Uptime() time.Duration {
	if e.started.IsZero() {
		return 0
	}
	return time.Since(e.started)
}

// Stats returns a snapshot for the stats endpoint.
func (e *Engine) Stats() map[string]interface{} {
	out := map[string]interface{}{
		"uptime_seconds": int64(e.Uptime().Seconds()),
		"recent_events":  e.Events.Len(),
	}
	if e.SecLog != nil {
		out["security_log"] = e.SecLog.Stats()
	}
	if e.Bus != nil {
		out["bus"] = e.Bus.GetMetrics()
		out["bus_connected"] = e.Bus.IsConnected()
	}
	return out
}
