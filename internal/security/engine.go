// Package security decides whether an action on a Home Assistant entity may run.
//
// Evaluate is a pure function of the request and the policy. Rules apply in a
// fixed order and the first applicable one wins:
//
//  1. level 0 allows everything
//  2. blocked_entities deny, even with force
//  3. a non-empty allowed_entities denies entities it does not match
//  4. level >= 3: actions on critical domains need confirmation unless forced
//  5. level >= 2: write actions need confirmation unless forced
//  6. everything else is allowed
package security

import (
	"fmt"
	"log/slog"

	"hactl/internal/config"
	"hactl/internal/domain"
	"hactl/internal/glob"
)

// Rule names reported in Decision.Rule.
const (
	RuleDisabled       = "level0"
	RuleBlocklist      = "blocklist"
	RuleAllowlist      = "allowlist"
	RuleCriticalDomain = "critical_domain"
	RuleWriteGate      = "write_gate"
	RuleDefault        = "default"
)

var writeActions = map[string]bool{
	domain.ActionTurnOn:  true,
	domain.ActionTurnOff: true,
	domain.ActionToggle:  true,
	domain.ActionSet:     true,
}

// IsWriteAction reports whether action is gated at safety level 2.
func IsWriteAction(action string) bool { return writeActions[action] }

// Evaluate applies policy to req. The only error is a malformed entity id.
func Evaluate(req domain.ActionRequest, policy config.SafetyConfig) (domain.Decision, error) {
	entityDomain, _, err := domain.SplitEntityID(req.EntityID)
	if err != nil {
		return domain.Decision{}, err
	}

	d := domain.Decision{EntityID: req.EntityID, Action: req.Action}
	allow := func(rule string) (domain.Decision, error) {
		d.Outcome, d.Rule = domain.OutcomeAllowed, rule
		return d, nil
	}

	if policy.Level == 0 {
		return allow(RuleDisabled)
	}

	if pattern, ok := glob.MatchAny(policy.BlockedEntities, req.EntityID); ok {
		d.Outcome, d.Rule = domain.OutcomeDenied, RuleBlocklist
		d.Reason = fmt.Sprintf("entity %s is blocked by pattern %q", req.EntityID, pattern)
		return d, nil
	}

	if len(policy.AllowedEntities) > 0 {
		if _, ok := glob.MatchAny(policy.AllowedEntities, req.EntityID); !ok {
			d.Outcome, d.Rule = domain.OutcomeDenied, RuleAllowlist
			d.Reason = fmt.Sprintf("entity %s is not in the allowlist", req.EntityID)
			return d, nil
		}
	}

	if policy.Level >= 3 && containsString(policy.CriticalDomains, entityDomain) {
		if !req.Force {
			d.Outcome, d.Rule = domain.OutcomeRequiresConfirmation, RuleCriticalDomain
			d.Reason = fmt.Sprintf("%s is a critical domain", entityDomain)
			return d, nil
		}
		d.Forced = true
	}

	if policy.Level >= 2 && IsWriteAction(req.Action) {
		if !req.Force {
			d.Outcome, d.Rule = domain.OutcomeRequiresConfirmation, RuleWriteGate
			d.Reason = fmt.Sprintf("safety level %d requires confirmation for %s", policy.Level, req.Action)
			return d, nil
		}
		d.Forced = true
	}

	return allow(RuleDefault)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Engine evaluates requests against a loaded policy and logs every branch.
type Engine struct {
	policy config.SafetyConfig
	logger *slog.Logger
}

func NewEngine(policy config.SafetyConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{policy: policy, logger: logger}
}

func (e *Engine) Policy() config.SafetyConfig { return e.policy }

// Check evaluates req and logs the decision.
func (e *Engine) Check(req domain.ActionRequest) (domain.Decision, error) {
	d, err := Evaluate(req, e.policy)
	if err != nil {
		return d, err
	}

	attrs := []any{"entity", req.EntityID, "action", req.Action, "rule", d.Rule}
	switch d.Outcome {
	case domain.OutcomeDenied:
		e.logger.Error("action BLOCKED", append(attrs, "reason", d.Reason)...)
	case domain.OutcomeRequiresConfirmation:
		e.logger.Info("action requires confirmation", append(attrs, "reason", d.Reason)...)
	default:
		if d.Forced {
			e.logger.Warn("action FORCED past confirmation", attrs...)
		} else {
			e.logger.Debug("action allowed", attrs...)
		}
	}
	return d, nil
}
