package guard

import "time"

// LimitCategory selects which rate limit applies to a request.
type LimitCategory int

const (
	LimitGeneral LimitCategory = iota
	LimitLogin
)

func (c LimitCategory) String() string {
	if c == LimitLogin {
		return "login"
	}
	return "general"
}

// Limit is a rolling-window request budget.
type Limit struct {
	Max    int
	Window time.Duration
}

// CheckAndRecord prunes the client's window for the category, records this
// request and reports whether it is within the limit. The (Max+1)-th request
// inside the window is the first one denied. count is the window size after
// recording.
func (s *Store) CheckAndRecord(clientKey string, cat LimitCategory, limit Limit) (allowed bool, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := s.client(clientKey)
	w, ok := st.windows[cat]
	if !ok {
		w = &rateWindow{}
		st.windows[cat] = w
	}
	w.window = limit.Window
	w.stamps = prune(w.stamps, now, limit.Window)
	w.stamps = append(w.stamps, now)

	count = len(w.stamps)
	return count <= limit.Max, count
}

// WindowLen returns how many requests are currently recorded for the client
// and category, without pruning.
func (s *Store) WindowLen(clientKey string, cat LimitCategory) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.clients.Peek(clientKey)
	if !ok {
		return 0
	}
	if w, ok := st.windows[cat]; ok {
		return len(w.stamps)
	}
	return 0
}
