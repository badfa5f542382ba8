package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEntityID  = errors.New("entity id must have the form <domain>.<object_id>")
	ErrMalformedService   = errors.New("service must have the form <domain>.<service>")
	ErrMalformedParameter = errors.New("parameter must have the form key=value")
	ErrMalformedPayload   = errors.New("invalid JSON payload")
)

// ConfigError means the client is unconfigured or misconfigured; no command runs.
type ConfigError struct {
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	if len(e.Problems) > 1 {
		msg := "invalid configuration:"
		for _, p := range e.Problems {
			msg += "\n  - " + p
		}
		return msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "invalid configuration"
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError is malformed user input, reported before any policy or API call.
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// PolicyKind separates absolute denials from outcomes the caller can resolve.
type PolicyKind string

const (
	PermissionDenied     PolicyKind = "permission_denied"
	ConfirmationRequired PolicyKind = "confirmation_required"
)

// PolicyError reports a non-allowed Decision to the command layer.
type PolicyError struct {
	Kind     PolicyKind
	Decision Decision
}

func NewPolicyError(d Decision) *PolicyError {
	kind := PermissionDenied
	if d.Outcome == OutcomeRequiresConfirmation {
		kind = ConfirmationRequired
	}
	return &PolicyError{Kind: kind, Decision: d}
}

func (e *PolicyError) Error() string {
	if e.Kind == ConfirmationRequired {
		return fmt.Sprintf("%s on %s requires confirmation", e.Decision.Action, e.Decision.EntityID)
	}
	return fmt.Sprintf("%s on %s denied: %s", e.Decision.Action, e.Decision.EntityID, e.Decision.Reason)
}
