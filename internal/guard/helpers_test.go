package guard

import (
	"sync"
	"testing"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/modules/signature"
	"github.com/rs/zerolog"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type logEntry struct {
	client   string
	kind     string
	details  string
	severity core.Severity
}

type captureSink struct {
	mu      sync.Mutex
	entries []logEntry
}

func (s *captureSink) Log(clientKey, kind, details string, severity core.Severity) {
	s.mu.Lock()
	s.entries = append(s.entries, logEntry{clientKey, kind, details, severity})
	s.mu.Unlock()
}

func (s *captureSink) all() []logEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]logEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *captureSink) ofKind(kind string) []logEntry {
	var out []logEntry
	for _, e := range s.all() {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	s, err := NewStore(StoreOptions{
		MaxClients:    1000,
		SweepInterval: time.Minute,
		Retention:     10 * time.Minute,
		Clock:         clock.Now,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s
}

var defaultLimits = Limits{
	General: Limit{Max: 10, Window: 30 * time.Second},
	Login:   Limit{Max: 3, Window: 120 * time.Second},
}

type harness struct {
	clock *fakeClock
	store *Store
	sink  *captureSink
	v     *Validator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	store := newTestStore(t, clock)
	sink := &captureSink{}
	return &harness{
		clock: clock,
		store: store,
		sink:  sink,
		v:     NewValidator(store, signature.New(), sink, defaultLimits, zerolog.Nop()),
	}
}

func desc(client, method, target string, body any) *RequestDescriptor {
	path := target
	for i := 0; i < len(target); i++ {
		if target[i] == '?' {
			path = target[:i]
			break
		}
	}
	return &RequestDescriptor{
		ClientKey: client,
		Method:    method,
		Path:      path,
		RawTarget: target,
		Target:    target,
		Body:      body,
	}
}
