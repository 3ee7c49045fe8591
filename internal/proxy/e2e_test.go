package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/backend"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ─── Proxy in front of the demo backend ───────────────────────────────────────

func demoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testConfig(t, "http://127.0.0.1:1").Backend
	b, err := backend.New(cfg, bcrypt.MinCost, zerolog.Nop())
	if err != nil {
		t.Fatalf("backend.New() error: %v", err)
	}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postLogin(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url+"/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestEndToEnd_LoginBruteForce(t *testing.T) {
	b := demoBackend(t)
	s, ts := newProxy(t, testConfig(t, b.URL))

	wrong := `{"username":"testuser","password":"guess"}`
	for i := 1; i <= 3; i++ {
		if code, body := postLogin(t, ts.URL, wrong); code != http.StatusUnauthorized || body != backend.MsgBadCredential {
			t.Fatalf("attempt %d = %d %q, want backend 401", i, code, body)
		}
	}
	code, body := postLogin(t, ts.URL, `{"username":"testuser","password":"testpass"}`)
	if code != http.StatusForbidden || body != MsgRateLimited {
		t.Errorf("attempt 4 = %d %q, want 403 even with correct credentials", code, body)
	}

	eventually(t, "login rate event", func() bool { return s.engine.Events.Len() >= 1 })
	if ev := s.engine.Events.Recent(1)[0]; ev.Type != "LOGIN_RATE_LIMIT" || ev.Details != "Rate limit exceeded: 4/3" {
		t.Errorf("event = %+v", ev)
	}
}

func TestEndToEnd_SuccessfulLoginAndRoot(t *testing.T) {
	b := demoBackend(t)
	_, ts := newProxy(t, testConfig(t, b.URL))

	if code, body := postLogin(t, ts.URL, `{"username":"testuser","password":"testpass"}`); code != http.StatusOK || body != backend.MsgLoginOK {
		t.Errorf("login = %d %q", code, body)
	}
	if code, body := get(t, ts.URL+"/"); code != http.StatusOK || body != backend.MsgRoot {
		t.Errorf("GET / = %d %q", code, body)
	}
}

func TestEndToEnd_Escalation(t *testing.T) {
	b := demoBackend(t)
	s, ts := newProxy(t, testConfig(t, b.URL))

	for i := 0; i < 11; i++ {
		get(t, ts.URL+"/test")
	}
	get(t, ts.URL+"/search?q='%20OR%201=1%20--")

	eventually(t, "escalation event", func() bool {
		for _, ev := range s.engine.Events.Recent(10) {
			if ev.Type == "ESCALATED_THREAT" {
				return ev.Details == "ESCALATED THREAT - Multiple attack types: general_rate_limit + sql_injection"
			}
		}
		return false
	})
}
