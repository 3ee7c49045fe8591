package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity represents the severity level of a security event.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists every level in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Stream is the lower-case name used for the per-severity log file and bus subject.
func (s Severity) Stream() string {
	return strings.ToLower(s.String())
}

// ParseSeverity converts a level name to a Severity. Unknown names map to LOW.
func ParseSeverity(str string) Severity {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// SecurityEvent is one line of the security log: a detection, a rate
// violation or an escalation, attributed to a client.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ClientKey string    `json:"client_key"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Details   string    `json:"details"`
}

// NewSecurityEvent creates a SecurityEvent with a generated ID and current timestamp.
func NewSecurityEvent(clientKey, eventType, details string, severity Severity) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		ClientKey: clientKey,
		Type:      eventType,
		Severity:  severity,
		Details:   details,
	}
}

// Line renders the event in the human-readable log file format.
func (e *SecurityEvent) Line() string {
	return fmt.Sprintf("[%s] %s | IP: %s | %s | %s\n",
		e.Timestamp.Format("2006-01-02 15:04:05"), e.Severity, e.ClientKey, e.Type, e.Details)
}

// Marshal serializes the event to JSON.
func (e *SecurityEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalSecurityEvent deserializes a SecurityEvent from JSON.
func UnmarshalSecurityEvent(data []byte) (*SecurityEvent, error) {
	var event SecurityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
