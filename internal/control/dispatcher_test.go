package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"hactl/internal/config"
	"hactl/internal/domain"
	"hactl/internal/hass"
	"hactl/internal/security"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type serviceCall struct {
	domain, service string
	data            map[string]any
}

// fakeHub records service calls and serves canned states.
type fakeHub struct {
	states []domain.EntityState
	calls  []serviceCall
	err    error
}

func (f *fakeHub) TestConnection(ctx context.Context) (string, error) {
	return "API running.", f.err
}

func (f *fakeHub) GetStates(ctx context.Context) ([]domain.EntityState, error) {
	return f.states, f.err
}

func (f *fakeHub) GetState(ctx context.Context, entityID string) (*domain.EntityState, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.states {
		if s.EntityID == entityID {
			return &s, nil
		}
	}
	return nil, &hass.APIError{Kind: hass.KindNotFound, StatusCode: 404, Message: "Entity not found: " + entityID}
}

func (f *fakeHub) CallService(ctx context.Context, svcDomain, service string, data map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, serviceCall{svcDomain, service, data})
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`[]`), nil
}

func (f *fakeHub) CallServiceForEntity(ctx context.Context, entityID, service string, data map[string]any) (json.RawMessage, error) {
	payload := map[string]any{"entity_id": entityID}
	for k, v := range data {
		payload[k] = v
	}
	return f.CallService(ctx, domain.EntityDomain(entityID), service, payload)
}

type recordedDecision struct {
	d     domain.Decision
	force bool
}

type fakeAudit struct {
	records []recordedDecision
	err     error
}

func (f *fakeAudit) Record(ctx context.Context, d domain.Decision, force bool) error {
	f.records = append(f.records, recordedDecision{d, force})
	return f.err
}

func newDispatcher(policy config.SafetyConfig) (*Dispatcher, *fakeHub, *fakeAudit) {
	hub := &fakeHub{states: []domain.EntityState{
		{EntityID: "light.kitchen", State: "on"},
		{EntityID: "light.hall", State: "off"},
		{EntityID: "lock.front_door", State: "locked"},
	}}
	audit := &fakeAudit{}
	d := New(Config{
		Hub:    hub,
		Policy: security.NewEngine(policy, testLogger()),
		Audit:  audit,
		Logger: testLogger(),
	})
	return d, hub, audit
}

func level(n int, critical ...string) config.SafetyConfig {
	return config.SafetyConfig{Level: n, CriticalDomains: critical}
}

func policyKind(err error) domain.PolicyKind {
	var pe *domain.PolicyError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// --- on / off / toggle ---

func TestControl_AllowedCallsHub(t *testing.T) {
	d, hub, audit := newDispatcher(level(1))
	res, err := d.TurnOn(context.Background(), "light.kitchen", false)
	if err != nil {
		t.Fatalf("turn on: %v", err)
	}
	if res.Message != "light.kitchen turned on" {
		t.Errorf("message = %q", res.Message)
	}
	if len(hub.calls) != 1 {
		t.Fatalf("calls = %d", len(hub.calls))
	}
	c := hub.calls[0]
	if c.domain != "light" || c.service != "turn_on" || c.data["entity_id"] != "light.kitchen" {
		t.Errorf("call = %+v", c)
	}
	if len(audit.records) != 1 || !audit.records[0].d.Allowed() {
		t.Fatalf("audit = %+v", audit.records)
	}
}

func TestControl_ConfirmationRequired(t *testing.T) {
	d, hub, audit := newDispatcher(level(3, "lock"))
	_, err := d.TurnOff(context.Background(), "lock.front_door", false)
	if policyKind(err) != domain.ConfirmationRequired {
		t.Fatalf("expected confirmation required, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatal("hub called despite confirmation requirement")
	}
	if len(audit.records) != 1 || audit.records[0].d.Allowed() {
		t.Fatalf("confirmation outcome not audited: %+v", audit.records)
	}

	res, err := d.TurnOff(context.Background(), "lock.front_door", true)
	if err != nil {
		t.Fatalf("forced: %v", err)
	}
	if res.Message != "lock.front_door turned off" || len(hub.calls) != 1 {
		t.Fatalf("forced result %+v calls %d", res, len(hub.calls))
	}
	if last := audit.records[len(audit.records)-1]; !last.force || !last.d.Allowed() {
		t.Fatalf("forced audit = %+v", last)
	}
}

func TestControl_BlockedEvenWithForce(t *testing.T) {
	p := level(3)
	p.BlockedEntities = []string{"switch.outdoor_*"}
	d, hub, audit := newDispatcher(p)

	_, err := d.Toggle(context.Background(), "switch.outdoor_pump", true)
	if policyKind(err) != domain.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatal("hub called for blocked entity")
	}
	if len(audit.records) != 1 || audit.records[0].d.Outcome != domain.OutcomeDenied {
		t.Fatalf("audit = %+v", audit.records)
	}
}

func TestControl_MalformedEntity(t *testing.T) {
	d, hub, audit := newDispatcher(level(0))
	_, err := d.TurnOn(context.Background(), "kitchen", true)
	var inputErr *domain.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if len(hub.calls) != 0 || len(audit.records) != 0 {
		t.Fatal("malformed input reached policy or hub")
	}
}

func TestControl_AuditFailureDoesNotMaskResult(t *testing.T) {
	d, hub, audit := newDispatcher(level(1))
	audit.err = errors.New("disk full")
	if _, err := d.TurnOn(context.Background(), "light.kitchen", false); err != nil {
		t.Fatalf("turn on: %v", err)
	}
	if len(hub.calls) != 1 {
		t.Fatal("hub not called")
	}
}

func TestControl_APIErrorPropagates(t *testing.T) {
	d, hub, _ := newDispatcher(level(0))
	hub.err = &hass.APIError{Kind: hass.KindAuth, StatusCode: 401, Message: "Authentication failed."}
	_, err := d.TurnOn(context.Background(), "light.kitchen", false)
	if !hass.IsKind(err, hass.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

// --- set ---

func TestSet_TypedAttributes(t *testing.T) {
	d, hub, audit := newDispatcher(level(1))
	res, err := d.Set(context.Background(), "light.kitchen", []string{"brightness=128", "transition=0.5", "effect=colorloop", "flash=no"}, false)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if res.Message != "light.kitchen updated" {
		t.Errorf("message = %q", res.Message)
	}
	c := hub.calls[0]
	if c.service != "turn_on" || c.domain != "light" {
		t.Fatalf("call = %+v", c)
	}
	body, _ := json.Marshal(c.data)
	want := `{"brightness":128,"effect":"colorloop","entity_id":"light.kitchen","flash":false,"transition":0.5}`
	if string(body) != want {
		t.Fatalf("payload = %s, want %s", body, want)
	}
	if audit.records[0].d.Action != "set" {
		t.Fatalf("audited action = %q", audit.records[0].d.Action)
	}
}

func TestSet_WriteGate(t *testing.T) {
	d, hub, _ := newDispatcher(level(2))
	_, err := d.Set(context.Background(), "light.kitchen", []string{"brightness=10"}, false)
	if policyKind(err) != domain.ConfirmationRequired {
		t.Fatalf("expected confirmation, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatal("hub called")
	}
}

func TestSet_InputErrors(t *testing.T) {
	d, hub, audit := newDispatcher(level(3))
	cases := [][]string{
		nil,
		{"brightness"},
		{"entity_id=lock.front_door"},
	}
	for _, tokens := range cases {
		_, err := d.Set(context.Background(), "light.kitchen", tokens, true)
		var inputErr *domain.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("%v: expected InputError, got %v", tokens, err)
		}
	}
	if len(hub.calls) != 0 || len(audit.records) != 0 {
		t.Fatal("input errors reached policy or hub")
	}
}

// --- call ---

func TestCall_KeyValuePayload(t *testing.T) {
	d, hub, audit := newDispatcher(level(1))
	res, err := d.Call(context.Background(), "light.turn_on", []string{"entity_id=light.hall", "brightness_pct=40"}, "", false)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Message != "Service light.turn_on called successfully" {
		t.Errorf("message = %q", res.Message)
	}
	if len(audit.records) != 1 || audit.records[0].d.EntityID != "light.hall" || audit.records[0].d.Action != "turn_on" {
		t.Fatalf("audit = %+v", audit.records)
	}
	body, _ := json.Marshal(hub.calls[0].data)
	if string(body) != `{"brightness_pct":40,"entity_id":"light.hall"}` {
		t.Fatalf("payload = %s", body)
	}
}

func TestCall_JSONPayloadVerbatim(t *testing.T) {
	d, hub, _ := newDispatcher(level(1))
	payload := `{"entity_id":"light.hall","rgb_color":[255,0,0],"brightness":1.50}`
	if _, err := d.Call(context.Background(), "light.turn_on", []string{"ignored=1"}, payload, false); err != nil {
		t.Fatalf("call: %v", err)
	}
	body, _ := json.Marshal(hub.calls[0].data)
	if string(body) != `{"brightness":1.50,"entity_id":"light.hall","rgb_color":[255,0,0]}` {
		t.Fatalf("payload = %s", body)
	}
}

func TestCall_NoEntitySkipsPolicy(t *testing.T) {
	p := level(3, "notify")
	p.AllowedEntities = []string{"light.*"}
	d, hub, audit := newDispatcher(p)
	if _, err := d.Call(context.Background(), "notify.notify", []string{"message=hello"}, "", false); err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(audit.records) != 0 {
		t.Fatalf("untargeted call audited: %+v", audit.records)
	}
	if len(hub.calls) != 1 {
		t.Fatal("hub not called")
	}
}

func TestCall_CriticalDomainNeedsForce(t *testing.T) {
	d, hub, _ := newDispatcher(level(3, "lock"))
	_, err := d.Call(context.Background(), "lock.unlock", []string{"entity_id=lock.front_door"}, "", false)
	if policyKind(err) != domain.ConfirmationRequired {
		t.Fatalf("expected confirmation, got %v", err)
	}
	if _, err := d.Call(context.Background(), "lock.unlock", []string{"entity_id=lock.front_door"}, "", true); err != nil {
		t.Fatalf("forced: %v", err)
	}
	if len(hub.calls) != 1 {
		t.Fatalf("calls = %d", len(hub.calls))
	}
}

func TestCall_BlocklistAbsoluteWithForce(t *testing.T) {
	p := level(3)
	p.BlockedEntities = []string{"switch.main_breaker"}
	d, hub, audit := newDispatcher(p)

	_, err := d.Call(context.Background(), "switch.turn_off", nil, `{"entity_id":"switch.main_breaker"}`, true)
	if policyKind(err) != domain.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatal("blocked entity reached hub via call --force")
	}
	if len(audit.records) != 1 || audit.records[0].d.Allowed() {
		t.Fatalf("audit = %+v", audit.records)
	}
}

func TestCall_EntityListGatesEach(t *testing.T) {
	p := level(1)
	p.BlockedEntities = []string{"light.hall"}
	d, hub, _ := newDispatcher(p)

	_, err := d.Call(context.Background(), "light.turn_off", nil, `{"entity_id":["light.kitchen","light.hall"]}`, false)
	if policyKind(err) != domain.PermissionDenied {
		t.Fatalf("expected denial for second target, got %v", err)
	}
	if len(hub.calls) != 0 {
		t.Fatal("hub called")
	}
}

func TestCall_InputErrorsPreemptPolicy(t *testing.T) {
	d, hub, audit := newDispatcher(level(3))
	cases := []struct {
		service string
		tokens  []string
		json    string
	}{
		{"turn_on", nil, ""},
		{".turn_on", nil, ""},
		{"light.turn_on", nil, `{"entity_id":`},
		{"light.turn_on", []string{"novalue"}, ""},
		{"light.turn_on", nil, `{"entity_id":"kitchen"}`},
		{"light.turn_on", nil, `{"entity_id":42}`},
	}
	for _, c := range cases {
		_, err := d.Call(context.Background(), c.service, c.tokens, c.json, false)
		var inputErr *domain.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("%+v: expected InputError, got %v", c, err)
		}
	}
	if len(hub.calls) != 0 || len(audit.records) != 0 {
		t.Fatal("input errors reached policy or hub")
	}
}

// --- read-only commands ---

func TestList_DomainFilter(t *testing.T) {
	d, _, audit := newDispatcher(level(3))
	all, err := d.List(context.Background(), "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all: %d %v", len(all), err)
	}
	lights, err := d.List(context.Background(), "light")
	if err != nil || len(lights) != 2 {
		t.Fatalf("lights: %d %v", len(lights), err)
	}
	none, err := d.List(context.Background(), "climate")
	if err != nil || len(none) != 0 {
		t.Fatalf("climate: %d %v", len(none), err)
	}
	if len(audit.records) != 0 {
		t.Fatal("read-only command audited")
	}
}

func TestState(t *testing.T) {
	d, _, _ := newDispatcher(level(3))
	s, err := d.State(context.Background(), "lock.front_door")
	if err != nil || s.State != "locked" {
		t.Fatalf("state: %+v %v", s, err)
	}
	if _, err := d.State(context.Background(), "light.ghost"); !hass.IsKind(err, hass.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var inputErr *domain.InputError
	if _, err := d.State(context.Background(), "ghost"); !errors.As(err, &inputErr) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestTest(t *testing.T) {
	d, _, _ := newDispatcher(level(3))
	msg, err := d.Test(context.Background())
	if err != nil || msg != "API running." {
		t.Fatalf("got %q %v", msg, err)
	}
}
