package guard

import (
	"sort"
	"time"
)

// Kind is a violation category tracked for escalation.
type Kind int

const (
	KindGeneralRate Kind = iota
	KindLoginRate
	KindSQLInjection
	KindDirectoryTraversal
	KindXSS
)

func (k Kind) String() string {
	switch k {
	case KindGeneralRate:
		return "general_rate_limit"
	case KindLoginRate:
		return "login_rate_limit"
	case KindSQLInjection:
		return "sql_injection"
	case KindDirectoryTraversal:
		return "directory_traversal"
	case KindXSS:
		return "xss_attack"
	default:
		return "unknown"
	}
}

func rateKind(cat LimitCategory) Kind {
	if cat == LimitLogin {
		return KindLoginRate
	}
	return KindGeneralRate
}

// Mark records the first occurrence of kind for the client. It returns
// whether a new marker was created and, in the same critical section, every
// kind currently marked for the client in canonical order. An existing marker
// is left untouched; only the sweep removes it.
func (s *Store) Mark(clientKey string, kind Kind) (created bool, kinds []Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.client(clientKey)
	if _, ok := st.markers[kind]; !ok {
		st.markers[kind] = s.now()
		created = true
	}
	return created, sortedKinds(st.markers)
}

// Kinds returns the kinds currently marked for the client.
func (s *Store) Kinds(clientKey string) []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.clients.Peek(clientKey)
	if !ok {
		return nil
	}
	return sortedKinds(st.markers)
}

func sortedKinds(markers map[Kind]time.Time) []Kind {
	kinds := make([]Kind, 0, len(markers))
	for k := range markers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
