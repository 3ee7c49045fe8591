package guard

import (
	"strings"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
)

// EventEscalatedThreat is the log type for multi-kind escalations.
const EventEscalatedThreat = "ESCALATED_THREAT"

// Escalator raises a CRITICAL event when a client has violations of two or
// more distinct kinds.
type Escalator struct {
	sink core.Sink
}

// NewEscalator returns an Escalator that reports through sink.
func NewEscalator(sink core.Sink) *Escalator {
	return &Escalator{sink: sink}
}

// Evaluate logs one escalation when created is true and kinds holds at least
// two entries. It reports whether an escalation was logged. It never affects
// the verdict of the request that triggered it.
func (e *Escalator) Evaluate(clientKey string, created bool, kinds []Kind) bool {
	if !created || len(kinds) < 2 {
		return false
	}
	e.sink.Log(clientKey, EventEscalatedThreat, EscalationDetails(kinds), core.SeverityCritical)
	return true
}

// EscalationDetails renders the log details for an escalation.
func EscalationDetails(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "ESCALATED THREAT - Multiple attack types: " + strings.Join(names, " + ")
}
