package guard

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/modules/signature"
)

const client = "10.0.0.7"

// ─── Signature stage ──────────────────────────────────────────────────────────

func TestValidate_SQLInjectionInQuery(t *testing.T) {
	h := newHarness(t)
	v := h.v.Validate(desc(client, "GET", "/search?q=' OR 1=1 --", nil))
	if v.Reason != ReasonSecurityThreat || v.Valid() {
		t.Fatalf("Validate() = %s, want security_threat", v.Reason)
	}
	if !v.Categories.Has(signature.SQLI) {
		t.Errorf("Categories = %s, want SQLI", v.Categories)
	}
	events := h.sink.ofKind(EventSQLInjection)
	if len(events) != 1 {
		t.Fatalf("expected one SQL_INJECTION event, got %+v", h.sink.all())
	}
	if events[0].severity != core.SeverityHigh || events[0].details != "SQL injection detected: /search?q=' OR 1=1 --" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestValidate_EncodedWhitespaceSeparators(t *testing.T) {
	cases := []struct {
		target string
		want   signature.Category
	}{
		{"/search?q='%0BOR%0B1=1", signature.SQLI},
		{"/search?q='%C2%A0OR%C2%A01=1", signature.SQLI},
		{"/search?q=x%C2%A0UNION%C2%A0SELECT%C2%A0pw", signature.SQLI},
		{"/p?x=%3Ca%20onclick%0B=%0B'x'%3E", signature.XSS},
	}
	for _, tc := range cases {
		h := newHarness(t)
		r := httptest.NewRequest(http.MethodGet, tc.target, nil)
		r.RemoteAddr = client + ":5555"
		d := DescriptorBuilder{}.Build(r)
		if d.Err != nil {
			t.Fatalf("Build(%q) error: %v", tc.target, d.Err)
		}
		v := h.v.Validate(d)
		if v.Reason != ReasonSecurityThreat || !v.Categories.Has(tc.want) {
			t.Errorf("Validate(%q) = %s %s, want security_threat %s", tc.target, v.Reason, v.Categories, tc.want)
		}
	}
}

func TestValidate_SignatureInBody(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"username": "admin", "comment": "<script>alert(1)</script>"}
	v := h.v.Validate(desc(client, "POST", "/comments", body))
	if v.Reason != ReasonSecurityThreat || !v.Categories.Has(signature.XSS) {
		t.Fatalf("Validate() = %+v, want XSS security_threat", v)
	}
	if len(h.sink.ofKind(EventScriptInjection)) != 1 {
		t.Errorf("expected SCRIPT_INJECTION event, got %+v", h.sink.all())
	}
}

func TestValidate_EverySignatureHitIsLogged(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.v.Validate(desc(client, "GET", "/files/../../etc/passwd", nil))
	}
	if n := len(h.sink.ofKind(EventDirectoryTraversal)); n != 3 {
		t.Errorf("DIRECTORY_TRAVERSAL events = %d, want 3", n)
	}
	if kinds := h.store.Kinds(client); len(kinds) != 1 || kinds[0] != KindDirectoryTraversal {
		t.Errorf("Kinds() = %v, want one traversal marker", kinds)
	}
}

func TestValidate_SignatureHitDoesNotConsumeRateBudget(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.v.Validate(desc(client, "GET", "/q?id=1 UNION SELECT 1", nil))
	}
	for i := 1; i <= 10; i++ {
		if v := h.v.Validate(desc(client, "GET", "/test", nil)); !v.Valid() {
			t.Fatalf("benign request %d = %s, want valid", i, v.Reason)
		}
	}
}

func TestValidate_SignatureTakesPrecedenceOverRate(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 11; i++ {
		h.v.Validate(desc(client, "GET", "/test", nil))
	}
	v := h.v.Validate(desc(client, "GET", "/test?x=<script>", nil))
	if v.Reason != ReasonSecurityThreat {
		t.Errorf("Validate() = %s, want security_threat while rate limited", v.Reason)
	}
}

func TestValidate_ExemptPathStillScanned(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 30; i++ {
		if v := h.v.Validate(desc(client, "GET", "/styles/site.css", nil)); !v.Valid() {
			t.Fatalf("static request %d = %s, want valid", i+1, v.Reason)
		}
	}
	if v := h.v.Validate(desc(client, "GET", "/../etc/passwd/app.js", nil)); v.Reason != ReasonSecurityThreat {
		t.Errorf("exempt path with traversal = %s, want security_threat", v.Reason)
	}
}

// ─── Rate stage ───────────────────────────────────────────────────────────────

func TestValidate_GeneralRateLimit(t *testing.T) {
	h := newHarness(t)
	for i := 1; i <= 10; i++ {
		if v := h.v.Validate(desc(client, "GET", "/test", nil)); !v.Valid() {
			t.Fatalf("request %d = %s, want valid", i, v.Reason)
		}
		h.clock.Advance(100 * time.Millisecond)
	}
	if v := h.v.Validate(desc(client, "GET", "/test", nil)); v.Reason != ReasonRateLimited {
		t.Fatalf("request 11 = %s, want rate_limited", v.Reason)
	}
	h.v.Validate(desc(client, "GET", "/test", nil))

	events := h.sink.ofKind(EventGeneralRateLimit)
	if len(events) != 1 {
		t.Fatalf("GENERAL_RATE_LIMIT events = %d, want 1 (first occurrence only)", len(events))
	}
	if events[0].severity != core.SeverityMedium || events[0].details != "Rate limit exceeded: 11/10" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestValidate_LoginRateLimit(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"username": "testuser", "password": "wrong"}
	for i := 1; i <= 3; i++ {
		if v := h.v.Validate(desc(client, "POST", "/login", body)); !v.Valid() {
			t.Fatalf("attempt %d = %s, want valid", i, v.Reason)
		}
	}
	if v := h.v.Validate(desc(client, "POST", "/login", body)); v.Reason != ReasonRateLimited {
		t.Fatalf("attempt 4 = %s, want rate_limited", v.Reason)
	}
	events := h.sink.ofKind(EventLoginRateLimit)
	if len(events) != 1 || events[0].severity != core.SeverityHigh || events[0].details != "Rate limit exceeded: 4/3" {
		t.Errorf("LOGIN_RATE_LIMIT events = %+v", events)
	}
}

func TestValidate_WindowResets(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 11; i++ {
		h.v.Validate(desc(client, "GET", "/test", nil))
	}
	h.clock.Advance(30 * time.Second)
	if v := h.v.Validate(desc(client, "GET", "/test", nil)); !v.Valid() {
		t.Errorf("after window = %s, want valid", v.Reason)
	}
}

// ─── Escalation ───────────────────────────────────────────────────────────────

func TestValidate_EscalationOnSecondKind(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 11; i++ {
		h.v.Validate(desc(client, "GET", "/test", nil))
	}
	if n := len(h.sink.ofKind(EventEscalatedThreat)); n != 0 {
		t.Fatalf("escalated after one kind: %d", n)
	}

	v := h.v.Validate(desc(client, "GET", "/search?q=' OR 1=1 --", nil))
	if v.Reason != ReasonSecurityThreat {
		t.Errorf("escalating request verdict = %s, want security_threat", v.Reason)
	}
	esc := h.sink.ofKind(EventEscalatedThreat)
	if len(esc) != 1 {
		t.Fatalf("ESCALATED_THREAT events = %d, want 1", len(esc))
	}
	want := "ESCALATED THREAT - Multiple attack types: general_rate_limit + sql_injection"
	if esc[0].details != want || esc[0].severity != core.SeverityCritical {
		t.Errorf("escalation = %+v, want details %q", esc[0], want)
	}

	// Same kinds again: no new escalation.
	h.v.Validate(desc(client, "GET", "/search?q=' OR 1=1 --", nil))
	h.v.Validate(desc(client, "GET", "/test", nil))
	if n := len(h.sink.ofKind(EventEscalatedThreat)); n != 1 {
		t.Errorf("ESCALATED_THREAT events = %d after repeats, want 1", n)
	}

	// A third kind crosses a new threshold.
	h.v.Validate(desc(client, "GET", "/x?<script>", nil))
	esc = h.sink.ofKind(EventEscalatedThreat)
	if len(esc) != 2 || !strings.HasSuffix(esc[1].details, "general_rate_limit + sql_injection + xss_attack") {
		t.Errorf("escalations = %+v", esc)
	}
}

func TestValidate_MultiCategoryRequestEscalatesOnce(t *testing.T) {
	h := newHarness(t)
	h.v.Validate(desc(client, "GET", "/q?a=' OR 1=1&b=<script>", nil))

	if len(h.sink.ofKind(EventSQLInjection)) != 1 || len(h.sink.ofKind(EventScriptInjection)) != 1 {
		t.Fatalf("events = %+v", h.sink.all())
	}
	esc := h.sink.ofKind(EventEscalatedThreat)
	if len(esc) != 1 || esc[0].details != "ESCALATED THREAT - Multiple attack types: sql_injection + xss_attack" {
		t.Errorf("escalations = %+v", esc)
	}
}

func TestValidate_EscalationIsPerClient(t *testing.T) {
	h := newHarness(t)
	h.v.Validate(desc("a", "GET", "/q?' OR 1=1", nil))
	h.v.Validate(desc("b", "GET", "/q?<script>", nil))
	if n := len(h.sink.ofKind(EventEscalatedThreat)); n != 0 {
		t.Errorf("cross-client escalation: %d", n)
	}
}

// ─── Malformed ────────────────────────────────────────────────────────────────

func TestValidate_UnserializableBody(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"c": make(chan int)}
	v := h.v.Validate(desc(client, "POST", "/login", body))
	if v.Reason != ReasonMalformed {
		t.Fatalf("Validate() = %s, want malformed", v.Reason)
	}
	if len(h.sink.all()) != 0 {
		t.Errorf("malformed request produced events: %+v", h.sink.all())
	}
	if h.store.Len() != 0 {
		t.Errorf("malformed request touched state: %d clients", h.store.Len())
	}
}

func TestValidate_DescriptorError(t *testing.T) {
	h := newHarness(t)
	d := desc(client, "POST", "/login?x=<script>", nil)
	d.Err = errors.New("parsing JSON body: unexpected EOF")
	if v := h.v.Validate(d); v.Reason != ReasonMalformed {
		t.Errorf("Validate() = %s, want malformed before any check", v.Reason)
	}
	if len(h.sink.all()) != 0 {
		t.Error("signature stage ran on a malformed request")
	}
}

// ─── Stats / reasons ──────────────────────────────────────────────────────────

func TestValidator_Stats(t *testing.T) {
	h := newHarness(t)
	h.v.Validate(desc(client, "GET", "/ok", nil))
	h.v.Validate(desc(client, "GET", "/q?' OR 1=1", nil))
	h.v.Validate(desc(client, "POST", "/x", map[string]any{"c": make(chan int)}))

	s := h.v.Stats()
	if s["validated"] != 3 || s["threats"] != 1 || s["malformed"] != 1 || s["rate_limited"] != 0 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestReason_Strings(t *testing.T) {
	cases := map[Reason]string{
		ReasonNone:           "valid",
		ReasonSecurityThreat: "security_threat",
		ReasonRateLimited:    "rate_limited",
		ReasonMalformed:      "malformed",
	}
	for r, want := range cases {
		if r.String() != want {
			t.Errorf("Reason(%d).String() = %q, want %q", int(r), r.String(), want)
		}
	}
}
