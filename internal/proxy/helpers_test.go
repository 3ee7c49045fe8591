package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/rs/zerolog"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

type seenRequest struct {
	Method        string
	URI           string
	Header        http.Header
	Body          string
	ContentLength int64
}

// echoUpstream records every request and answers with a fixed body.
func echoUpstream(t *testing.T) (*httptest.Server, <-chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			Method:        r.Method,
			URI:           r.RequestURI,
			Header:        r.Header.Clone(),
			Body:          string(body),
			ContentLength: r.ContentLength,
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Hello World - Web Server Resource"))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func testConfig(t *testing.T, upstream string) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Proxy.Upstream = upstream
	cfg.Proxy.Host = "127.0.0.1"
	cfg.Proxy.Port = 0
	cfg.SecurityLog.Dir = t.TempDir()
	return cfg
}

func startedEngine(t *testing.T, cfg *core.Config) *core.Engine {
	t.Helper()
	e := core.NewEngine(cfg)
	e.Logger = zerolog.Nop()
	if err := e.Start(); err != nil {
		t.Fatalf("engine Start() error: %v", err)
	}
	t.Cleanup(func() { e.Shutdown() })
	return e
}

// newProxy returns a test server fronting the proxy handler chain.
func newProxy(t *testing.T, cfg *core.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(startedEngine(t, cfg))
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func decodeJSON(t *testing.T, body string, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(strings.NewReader(body)).Decode(v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func noRequest(t *testing.T, seen <-chan seenRequest) {
	t.Helper()
	select {
	case r := <-seen:
		t.Errorf("upstream should not have been called, got %s %s", r.Method, r.URI)
	default:
	}
}
