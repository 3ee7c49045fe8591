package guard

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property 1: exactly max requests pass; the (max+1)-th is the first denial.
	properties.Property("first denial is request max+1", prop.ForAll(
		func(max, n int) bool {
			clock := newFakeClock()
			s := newTestStore(t, clock)
			limit := Limit{Max: max, Window: time.Hour}
			for i := 1; i <= n; i++ {
				allowed, count := s.CheckAndRecord("p", LimitGeneral, limit)
				if allowed != (i <= max) || count != i {
					return false
				}
				clock.Advance(time.Millisecond)
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 60),
	))

	// Property 2: after a full window of silence the budget is restored.
	properties.Property("budget restored after window", prop.ForAll(
		func(max int, windowMs int) bool {
			clock := newFakeClock()
			s := newTestStore(t, clock)
			limit := Limit{Max: max, Window: time.Duration(windowMs) * time.Millisecond}
			for i := 0; i <= max; i++ {
				s.CheckAndRecord("p", LimitLogin, limit)
			}
			clock.Advance(limit.Window)
			allowed, count := s.CheckAndRecord("p", LimitLogin, limit)
			return allowed && count == 1
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 120000),
	))

	// Property 3: a signature match is reported as a threat whatever the rate state.
	properties.Property("signature precedence over rate state", prop.ForAll(
		func(benign int) bool {
			h := newHarness(t)
			for i := 0; i < benign; i++ {
				h.v.Validate(desc(client, "GET", "/test", nil))
			}
			return h.v.Validate(desc(client, "GET", "/test?q=' OR 1=1", nil)).Reason == ReasonSecurityThreat
		},
		gen.IntRange(0, 40),
	))

	// Property 4: each distinct kind escalates at most once, and only from the second kind.
	properties.Property("one escalation per new kind", prop.ForAll(
		func(repeats int) bool {
			h := newHarness(t)
			targets := []string{"/q?' OR 1=1", "/../etc/passwd", "/q?<script>"}
			for _, target := range targets {
				for i := 0; i < repeats; i++ {
					h.v.Validate(desc(client, "GET", target, nil))
				}
			}
			return len(h.sink.ofKind(EventEscalatedThreat)) == len(targets)-1
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
