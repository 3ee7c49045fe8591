// Package signature detects SQL injection, directory traversal and script
// injection payloads in request text.
package signature

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// Category is one detection family.
type Category uint8

const (
	SQLI Category = 1 << iota
	Traversal
	XSS
)

// AllCategories lists the families in reporting order.
var AllCategories = []Category{SQLI, Traversal, XSS}

func (c Category) String() string {
	switch c {
	case SQLI:
		return "SQLI"
	case Traversal:
		return "TRAVERSAL"
	case XSS:
		return "XSS"
	default:
		return "UNKNOWN"
	}
}

// Label is the human-readable family name.
func (c Category) Label() string {
	switch c {
	case SQLI:
		return "SQL Injection"
	case Traversal:
		return "Directory Traversal"
	case XSS:
		return "Cross-Site Scripting"
	default:
		return c.String()
	}
}

// Categories is a set of matched families.
type Categories uint8

// Has reports whether c is in the set.
func (s Categories) Has(c Category) bool { return s&Categories(c) != 0 }

// Empty reports whether nothing matched.
func (s Categories) Empty() bool { return s == 0 }

// List returns the members in SQLI, TRAVERSAL, XSS order.
func (s Categories) List() []Category {
	var out []Category
	for _, c := range AllCategories {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s Categories) String() string {
	list := s.List()
	if len(list) == 0 {
		return "NONE"
	}
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

// Pattern is a compiled detection pattern.
type Pattern struct {
	Name     string
	Category Category
	Regex    *regexp.Regexp
}

// Hit is one pattern that matched an input.
type Hit struct {
	Category    Category `json:"-"`
	CategoryTag string   `json:"category"`
	PatternName string   `json:"pattern_name"`
	MatchedText string   `json:"matched_text"`
}

// Stats counts how often each family matched.
type Stats struct {
	Scanned   int64 `json:"scanned"`
	SQLI      int64 `json:"sqli"`
	Traversal int64 `json:"traversal"`
	XSS       int64 `json:"xss"`
}

// Matcher evaluates the pattern sets. It is immutable after New and safe for
// concurrent use.
type Matcher struct {
	sets map[Category][]Pattern

	scanned   atomic.Int64
	sqli      atomic.Int64
	traversal atomic.Int64
	xss       atomic.Int64
}

// New compiles the built-in pattern sets.
func New() *Matcher {
	sets := compilePatterns()
	for cat, patterns := range sets {
		for i := range patterns {
			patterns[i].Category = cat
		}
	}
	return &Matcher{sets: sets}
}

// Match returns every family with at least one matching pattern. Each family
// short-circuits on its first hit.
func (m *Matcher) Match(input string) Categories {
	m.scanned.Add(1)
	var found Categories
	for _, cat := range AllCategories {
		for _, p := range m.sets[cat] {
			if p.Regex.MatchString(input) {
				found |= Categories(cat)
				m.count(cat)
				break
			}
		}
	}
	return found
}

// Explain returns every matching pattern, for diagnostics. It does not touch
// the stats counters.
func (m *Matcher) Explain(input string) []Hit {
	var hits []Hit
	for _, cat := range AllCategories {
		for _, p := range m.sets[cat] {
			loc := p.Regex.FindStringIndex(input)
			if loc == nil {
				continue
			}
			hits = append(hits, Hit{
				Category:    cat,
				CategoryTag: cat.String(),
				PatternName: p.Name,
				MatchedText: truncate(input[loc[0]:loc[1]], 200),
			})
		}
	}
	return hits
}

// Patterns returns the pattern count per family.
func (m *Matcher) Patterns() map[string]int {
	out := make(map[string]int, len(m.sets))
	for cat, ps := range m.sets {
		out[cat.String()] = len(ps)
	}
	return out
}

// Stats returns a snapshot of the match counters.
func (m *Matcher) Stats() Stats {
	return Stats{
		Scanned:   m.scanned.Load(),
		SQLI:      m.sqli.Load(),
		Traversal: m.traversal.Load(),
		XSS:       m.xss.Load(),
	}
}

func (m *Matcher) count(cat Category) {
	switch cat {
	case SQLI:
		m.sqli.Add(1)
	case Traversal:
		m.traversal.Add(1)
	case XSS:
		m.xss.Add(1)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
