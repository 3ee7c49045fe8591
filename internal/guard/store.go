// Package guard holds the request validation engine: per-client rate
// windows, first-occurrence violation markers, escalation detection and the
// validator that combines them with the signature matcher.
package guard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// StoreOptions configures the client state store.
type StoreOptions struct {
	MaxClients    int
	SweepInterval time.Duration
	Retention     time.Duration
	Clock         Clock
}

type rateWindow struct {
	window time.Duration
	stamps []time.Time
}

type clientState struct {
	windows map[LimitCategory]*rateWindow
	markers map[Kind]time.Time
}

func newClientState() *clientState {
	return &clientState{
		windows: make(map[LimitCategory]*rateWindow, 2),
		markers: make(map[Kind]time.Time, 2),
	}
}

func (c *clientState) empty() bool {
	return len(c.windows) == 0 && len(c.markers) == 0
}

// Store owns all per-client state. A single mutex covers every read-modify-write
// on the request path and the periodic sweep.
type Store struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *clientState]

	now       Clock
	interval  time.Duration
	retention time.Duration
	logger    zerolog.Logger

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	evicted atomic.Int64
	swept   atomic.Int64
}

// NewStore creates an empty store. The sweep does not run until Start.
func NewStore(opts StoreOptions, logger zerolog.Logger) (*Store, error) {
	size := opts.MaxClients
	if size <= 0 {
		size = 100000
	}
	cache, err := lru.New[string, *clientState](size)
	if err != nil {
		return nil, fmt.Errorf("creating client cache: %w", err)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &Store{
		clients:   cache,
		now:       now,
		interval:  interval,
		retention: retention,
		logger:    logger.With().Str("component", "guard_store").Logger(),
	}, nil
}

// client returns the state for key, creating it if needed. Caller holds s.mu.
func (s *Store) client(key string) *clientState {
	if st, ok := s.clients.Get(key); ok {
		return st
	}
	st := newClientState()
	if s.clients.Add(key, st) {
		s.evicted.Add(1)
		s.logger.Debug().Str("client", key).Msg("client cache full, least recently seen client evicted")
	}
	return st
}

// Start launches the background sweep. Calling Start twice is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.Sweep()
				s.logger.Debug().Int("removed", removed).Int("clients", s.clients.Len()).Msg("sweep complete")
			}
		}
	}()
	s.logger.Info().Dur("interval", s.interval).Dur("retention", s.retention).Msg("client state sweep started")
}

// Stop cancels the sweep and waits for it to exit.
func (s *Store) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// Sweep prunes every rate window to its own duration, removes markers older
// than the retention period and forgets clients with no state left. It
// returns the number of clients removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.clients.Keys() {
		st, ok := s.clients.Peek(key)
		if !ok {
			continue
		}
		for cat, w := range st.windows {
			w.stamps = prune(w.stamps, now, w.window)
			if len(w.stamps) == 0 {
				delete(st.windows, cat)
			}
		}
		for kind, at := range st.markers {
			if now.Sub(at) >= s.retention {
				delete(st.markers, kind)
			}
		}
		if st.empty() {
			s.clients.Remove(key)
			removed++
		}
	}
	s.swept.Add(int64(removed))
	return removed
}

// Len returns the number of tracked clients.
func (s *Store) Len() int {
	return s.clients.Len()
}

// Stats returns store counters.
func (s *Store) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":         s.clients.Len(),
		"evicted_clients": s.evicted.Load(),
		"swept_clients":   s.swept.Load(),
	}
}

// prune drops timestamps that fell out of the window. Survivors satisfy
// now - ts < window. stamps is ordered, so the cut is a prefix.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= window {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
