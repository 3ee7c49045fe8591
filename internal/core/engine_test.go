package core

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testEngineConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SecurityLog.Dir = t.TempDir()
	cfg.Logging.Level = "error"
	return cfg
}

func TestEngine_Uptime_ZeroBeforeStart(t *testing.T) {
	e := NewEngine(testEngineConfig(t))
	if e.Uptime() != 0 {
		t.Errorf("expected 0 uptime before start, got %v", e.Uptime())
	}
}

func TestEngine_StartLogShutdown(t *testing.T) {
	e := NewEngine(testEngineConfig(t))
	e.Logger = zerolog.Nop()
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	e.SecLog.Log("192.0.2.1", "SQL_INJECTION", "SQL injection detected: /q", SeverityHigh)
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	recent := e.Events.Recent(10)
	if len(recent) != 1 || recent[0].ClientKey != "192.0.2.1" {
		t.Fatalf("event ring = %+v", recent)
	}
	data, err := os.ReadFile(e.SecLog.Path(SeverityHigh))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "SQL_INJECTION") {
		t.Errorf("high log = %q", data)
	}
	select {
	case <-e.Context().Done():
	default:
		t.Error("context should be cancelled after Shutdown")
	}

	stats := e.Stats()
	if _, ok := stats["security_log"]; !ok {
		t.Error("stats should include security_log")
	}
	if _, ok := stats["bus"]; ok {
		t.Error("stats should not include bus when disabled")
	}
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", out)
	}
}

func TestEngine_WithEmbeddedBus(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	cfg := testEngineConfig(t)
	cfg.Bus.Enabled = true
	cfg.Bus.Embedded = true
	cfg.Bus.Port = -1
	cfg.Bus.DataDir = t.TempDir()

	e := NewEngine(cfg)
	e.Logger = zerolog.Nop()
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer e.Shutdown()

	got := make(chan *SecurityEvent, 1)
	if err := e.Bus.Subscribe("sec.log.critical", func(ev *SecurityEvent) {
		got <- ev
	}); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	e.SecLog.Log("198.51.100.7", "ESCALATED_THREAT", "a + b", SeverityCritical)

	select {
	case ev := <-got:
		if ev.ClientKey != "198.51.100.7" || ev.Severity != SeverityCritical {
			t.Errorf("unexpected event from bus: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event on bus")
	}
	if !e.Bus.IsConnected() {
		t.Error("bus should be connected")
	}
}
