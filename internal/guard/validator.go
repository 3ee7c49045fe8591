package guard

import (
	"fmt"
	"sync/atomic"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/modules/signature"
	"github.com/rs/zerolog"
)

// Reason is why a request was rejected. ReasonNone means it was allowed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSecurityThreat
	ReasonRateLimited
	ReasonMalformed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonSecurityThreat:
		return "security_threat"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of validating one request.
type Verdict struct {
	Reason     Reason
	Categories signature.Categories // set when Reason is ReasonSecurityThreat
}

// Valid reports whether the request may be relayed.
func (v Verdict) Valid() bool { return v.Reason == ReasonNone }

// Matcher finds attack signatures in request text.
type Matcher interface {
	Match(input string) signature.Categories
}

// Limits holds the two rate budgets.
type Limits struct {
	General Limit
	Login   Limit
}

// For returns the budget for a category.
func (l Limits) For(cat LimitCategory) Limit {
	if cat == LimitLogin {
		return l.Login
	}
	return l.General
}

// Security log event types.
const (
	EventGeneralRateLimit   = "GENERAL_RATE_LIMIT"
	EventLoginRateLimit     = "LOGIN_RATE_LIMIT"
	EventSQLInjection       = "SQL_INJECTION"
	EventDirectoryTraversal = "DIRECTORY_TRAVERSAL"
	EventScriptInjection    = "SCRIPT_INJECTION"
)

type signatureRule struct {
	kind      Kind
	eventType string
	label     string
}

var signatureRules = map[signature.Category]signatureRule{
	signature.SQLI:      {KindSQLInjection, EventSQLInjection, "SQL injection"},
	signature.Traversal: {KindDirectoryTraversal, EventDirectoryTraversal, "Directory traversal"},
	signature.XSS:       {KindXSS, EventScriptInjection, "Script injection"},
}

// Validator runs the two-stage check: signatures first, then rate limits.
type Validator struct {
	store     *Store
	matcher   Matcher
	sink      core.Sink
	escalator *Escalator
	limits    Limits
	logger    zerolog.Logger

	validated   atomic.Int64
	threats     atomic.Int64
	rateLimited atomic.Int64
	malformed   atomic.Int64
	escalations atomic.Int64
}

// NewValidator wires the engine together.
func NewValidator(store *Store, matcher Matcher, sink core.Sink, limits Limits, logger zerolog.Logger) *Validator {
	return &Validator{
		store:     store,
		matcher:   matcher,
		sink:      sink,
		escalator: NewEscalator(sink),
		limits:    limits,
		logger:    logger.With().Str("component", "validator").Logger(),
	}
}

// Validate decides whether d may be relayed. Logging, marker and escalation
// side effects happen here; the verdict depends only on the signature match
// and the rate check.
func (v *Validator) Validate(d *RequestDescriptor) Verdict {
	v.validated.Add(1)

	if d.Err != nil {
		return v.rejectMalformed(d, d.Err)
	}
	input, err := d.Inspectable()
	if err != nil {
		return v.rejectMalformed(d, err)
	}

	if cats := v.matcher.Match(input); !cats.Empty() {
		v.threats.Add(1)
		for _, cat := range cats.List() {
			rule := signatureRules[cat]
			v.sink.Log(d.ClientKey, rule.eventType,
				fmt.Sprintf("%s detected: %s", rule.label, d.RawTarget), core.SeverityHigh)
			created, kinds := v.store.Mark(d.ClientKey, rule.kind)
			v.escalate(d.ClientKey, created, kinds)
		}
		return Verdict{Reason: ReasonSecurityThreat, Categories: cats}
	}

	if IsExempt(d.Path) {
		return Verdict{Reason: ReasonNone}
	}

	cat := LimitFor(d.Path)
	limit := v.limits.For(cat)
	allowed, count := v.store.CheckAndRecord(d.ClientKey, cat, limit)
	if allowed {
		return Verdict{Reason: ReasonNone}
	}

	v.rateLimited.Add(1)
	kind := rateKind(cat)
	created, kinds := v.store.Mark(d.ClientKey, kind)
	if created {
		eventType, sev := EventGeneralRateLimit, core.SeverityMedium
		if cat == LimitLogin {
			eventType, sev = EventLoginRateLimit, core.SeverityHigh
		}
		v.sink.Log(d.ClientKey, eventType, fmt.Sprintf("Rate limit exceeded: %d/%d", count, limit.Max), sev)
		v.escalate(d.ClientKey, created, kinds)
	}
	return Verdict{Reason: ReasonRateLimited}
}

func (v *Validator) escalate(clientKey string, created bool, kinds []Kind) {
	if v.escalator.Evaluate(clientKey, created, kinds) {
		v.escalations.Add(1)
	}
}

func (v *Validator) rejectMalformed(d *RequestDescriptor, err error) Verdict {
	v.malformed.Add(1)
	v.logger.Debug().Err(err).
		Str("client", d.ClientKey).
		Str("target", d.RawTarget).
		Msg("malformed request")
	return Verdict{Reason: ReasonMalformed}
}

// Stats returns validation counters.
func (v *Validator) Stats() map[string]int64 {
	return map[string]int64{
		"validated":    v.validated.Load(),
		"threats":      v.threats.Load(),
		"rate_limited": v.rateLimited.Load(),
		"malformed":    v.malformed.Load(),
		"escalations":  v.escalations.Load(),
	}
}
