// Package control runs user commands: it gates mutating actions through the
// safety policy, records the decision, and only then calls the hub.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"hactl/internal/domain"
	"hactl/internal/params"
)

// Hub is the subset of the API client the dispatcher needs.
type Hub interface {
	TestConnection(ctx context.Context) (string, error)
	GetStates(ctx context.Context) ([]domain.EntityState, error)
	GetState(ctx context.Context, entityID string) (*domain.EntityState, error)
	CallService(ctx context.Context, svcDomain, service string, data map[string]any) (json.RawMessage, error)
	CallServiceForEntity(ctx context.Context, entityID, service string, data map[string]any) (json.RawMessage, error)
}

// Policy decides on one action request.
type Policy interface {
	Check(req domain.ActionRequest) (domain.Decision, error)
}

// Auditor records a decision.
type Auditor interface {
	Record(ctx context.Context, d domain.Decision, force bool) error
}

type Config struct {
	Hub    Hub
	Policy Policy
	Audit  Auditor
	Logger *slog.Logger
}

type Dispatcher struct {
	hub    Hub
	policy Policy
	audit  Auditor
	logger *slog.Logger
}

func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{hub: cfg.Hub, policy: cfg.Policy, audit: cfg.Audit, logger: cfg.Logger}
}

// Result describes a completed mutating command.
type Result struct {
	Message  string
	Response json.RawMessage // hub response, usually the changed states
}

// gate evaluates one request and records the decision. A non-allowed
// decision comes back as a *domain.PolicyError.
func (d *Dispatcher) gate(ctx context.Context, req domain.ActionRequest) error {
	decision, err := d.policy.Check(req)
	if err != nil {
		return err
	}
	if d.audit != nil {
		if err := d.audit.Record(ctx, decision, req.Force); err != nil {
			d.logger.Warn("audit record failed", "entity", req.EntityID, "action", req.Action, "err", err)
		}
	}
	if !decision.Allowed() {
		return domain.NewPolicyError(decision)
	}
	return nil
}

// Control runs turn_on, turn_off or toggle on one entity.
func (d *Dispatcher) Control(ctx context.Context, action, entityID string, force bool) (*Result, error) {
	if _, _, err := domain.SplitEntityID(entityID); err != nil {
		return nil, err
	}
	if err := d.gate(ctx, domain.ActionRequest{EntityID: entityID, Action: action, Force: force}); err != nil {
		return nil, err
	}
	resp, err := d.hub.CallServiceForEntity(ctx, entityID, action, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Message: entityID + " " + pastTense(action), Response: resp}, nil
}

func (d *Dispatcher) TurnOn(ctx context.Context, entityID string, force bool) (*Result, error) {
	return d.Control(ctx, domain.ActionTurnOn, entityID, force)
}

func (d *Dispatcher) TurnOff(ctx context.Context, entityID string, force bool) (*Result, error) {
	return d.Control(ctx, domain.ActionTurnOff, entityID, force)
}

func (d *Dispatcher) Toggle(ctx context.Context, entityID string, force bool) (*Result, error) {
	return d.Control(ctx, domain.ActionToggle, entityID, force)
}

func pastTense(action string) string {
	switch action {
	case domain.ActionTurnOn:
		return "turned on"
	case domain.ActionTurnOff:
		return "turned off"
	case domain.ActionToggle:
		return "toggled"
	}
	return action
}

var errEntityIDAttribute = errors.New("entity_id is taken from the command argument")

// Set applies key=value attributes through <domain>.turn_on.
func (d *Dispatcher) Set(ctx context.Context, entityID string, tokens []string, force bool) (*Result, error) {
	entityDomain, _, err := domain.SplitEntityID(entityID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &domain.InputError{Field: "attributes", Err: domain.ErrMalformedParameter}
	}
	data, err := params.ParseAssignments(tokens)
	if err != nil {
		return nil, err
	}
	// The gated entity must be the one the hub acts on.
	if _, ok := data["entity_id"]; ok {
		return nil, &domain.InputError{Field: "attributes", Value: "entity_id", Err: errEntityIDAttribute}
	}
	data["entity_id"] = entityID

	if err := d.gate(ctx, domain.ActionRequest{EntityID: entityID, Action: domain.ActionSet, Force: force}); err != nil {
		return nil, err
	}
	resp, err := d.hub.CallService(ctx, entityDomain, domain.ActionTurnOn, data)
	if err != nil {
		return nil, err
	}
	return &Result{Message: entityID + " updated", Response: resp}, nil
}

// Call invokes any domain.service. jsonPayload, when non-empty, is used
// verbatim instead of tokens. Every entity named in entity_id is gated with
// the service name as the action; without entity_id nothing is gated.
func (d *Dispatcher) Call(ctx context.Context, service string, tokens []string, jsonPayload string, force bool) (*Result, error) {
	svcDomain, svcName, ok := strings.Cut(service, ".")
	if !ok || svcDomain == "" || svcName == "" {
		return nil, &domain.InputError{Field: "service", Value: service, Err: domain.ErrMalformedService}
	}

	var data map[string]any
	var err error
	if jsonPayload != "" {
		data, err = params.ParseJSONObject(jsonPayload)
	} else {
		data, err = params.ParseAssignments(tokens)
	}
	if err != nil {
		return nil, err
	}

	targets, _, err := params.TargetEntities(data)
	if err != nil {
		return nil, err
	}
	for _, id := range targets {
		if _, _, err := domain.SplitEntityID(id); err != nil {
			return nil, err
		}
	}
	for _, id := range targets {
		if err := d.gate(ctx, domain.ActionRequest{EntityID: id, Action: svcName, Force: force}); err != nil {
			return nil, err
		}
	}
	if len(targets) == 0 {
		d.logger.Debug("service call has no entity_id, skipping safety check", "service", service)
	}

	resp, err := d.hub.CallService(ctx, svcDomain, svcName, data)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "Service " + service + " called successfully", Response: resp}, nil
}

// List returns all states, optionally only those of one domain.
func (d *Dispatcher) List(ctx context.Context, domainFilter string) ([]domain.EntityState, error) {
	states, err := d.hub.GetStates(ctx)
	if err != nil {
		return nil, err
	}
	if domainFilter == "" {
		return states, nil
	}
	filtered := make([]domain.EntityState, 0, len(states))
	for _, s := range states {
		if s.Domain() == domainFilter {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func (d *Dispatcher) State(ctx context.Context, entityID string) (*domain.EntityState, error) {
	if _, _, err := domain.SplitEntityID(entityID); err != nil {
		return nil, err
	}
	return d.hub.GetState(ctx, entityID)
}

func (d *Dispatcher) Test(ctx context.Context) (string, error) {
	return d.hub.TestConnection(ctx)
}
