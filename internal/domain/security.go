package domain

import (
	"context"
	"time"
)

// Outcome is the result of evaluating an action against the safety policy.
type Outcome string

const (
	OutcomeAllowed              Outcome = "allowed"
	OutcomeDenied               Outcome = "denied"
	OutcomeRequiresConfirmation Outcome = "confirm"
)

// Write actions gated by safety level 2.
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
	ActionToggle  = "toggle"
	ActionSet     = "set"
)

// ActionRequest is one gated action, built per command.
type ActionRequest struct {
	EntityID string
	Action   string
	Force    bool
}

// Decision is produced once per ActionRequest and never persisted as-is.
type Decision struct {
	Outcome  Outcome
	EntityID string
	Action   string
	Rule     string // level0 | blocklist | allowlist | critical_domain | write_gate | default
	Reason   string
	// Forced is set when --force was needed to pass a confirmation rule.
	Forced bool
}

func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllowed }

// AuditRecord is appended once per decision.
type AuditRecord struct {
	InvocationID string
	EntityID     string
	Action       string
	Forced       bool
	Allowed      bool
	Outcome      Outcome
	Reason       string
	Time         time.Time
}

// AuditSink persists audit records (sqlite store, text log).
type AuditSink interface {
	LogAudit(ctx context.Context, rec AuditRecord) error
}

// RecordFor builds the audit record describing a decision.
func RecordFor(d Decision, force bool) AuditRecord {
	return AuditRecord{
		EntityID: d.EntityID,
		Action:   d.Action,
		Forced:   force,
		Allowed:  d.Allowed(),
		Outcome:  d.Outcome,
		Reason:   d.Reason,
	}
}
