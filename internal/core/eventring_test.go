package core

import (
	"fmt"
	"sync"
	"testing"
)

func ringEvent(i int) *SecurityEvent {
	return NewSecurityEvent("10.0.0.1", "SQL_INJECTION", fmt.Sprintf("hit %d", i), SeverityHigh)
}

func TestEventRing_Empty(t *testing.T) {
	r := NewEventRing(10)
	if got := r.Recent(5); len(got) != 0 {
		t.Errorf("new ring should be empty, got %d events", len(got))
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestEventRing_RecentChronological(t *testing.T) {
	r := NewEventRing(10)
	for i := 0; i < 4; i++ {
		r.Add(ringEvent(i))
	}
	got := r.Recent(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, want := range []string{"hit 1", "hit 2", "hit 3"} {
		if got[i].Details != want {
			t.Errorf("Recent()[%d] = %q, want %q", i, got[i].Details, want)
		}
	}
}

func TestEventRing_Wraparound(t *testing.T) {
	r := NewEventRing(3)
	for i := 0; i < 7; i++ {
		r.Add(ringEvent(i))
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	got := r.Recent(100)
	if len(got) != 3 {
		t.Fatalf("expected 3 events after wrap, got %d", len(got))
	}
	if got[0].Details != "hit 4" || got[2].Details != "hit 6" {
		t.Errorf("unexpected order after wrap: %q .. %q", got[0].Details, got[2].Details)
	}
}

func TestEventRing_NonPositiveRequest(t *testing.T) {
	r := NewEventRing(3)
	r.Add(ringEvent(0))
	if got := r.Recent(0); len(got) != 0 {
		t.Errorf("Recent(0) returned %d events", len(got))
	}
	if got := r.Recent(-2); len(got) != 0 {
		t.Errorf("Recent(-2) returned %d events", len(got))
	}
}

func TestEventRing_ConcurrentAdd(t *testing.T) {
	r := NewEventRing(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Add(ringEvent(g*100 + i))
			}
		}(g)
	}
	wg.Wait()
	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
