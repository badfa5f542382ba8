package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// SplitEntityID splits "light.kitchen" into ("light", "kitchen").
func SplitEntityID(entityID string) (domain, objectID string, err error) {
	d, obj, ok := strings.Cut(entityID, ".")
	if !ok || d == "" || obj == "" {
		return "", "", &InputError{Field: "entity_id", Value: entityID, Err: ErrMalformedEntityID}
	}
	return d, obj, nil
}

// EntityDomain returns the prefix before the first '.', or the whole id.
func EntityDomain(entityID string) string {
	d, _, _ := strings.Cut(entityID, ".")
	return d
}

// EntityState is a read-only snapshot of one entity as reported by the hub.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged Timestamp      `json:"last_changed"`
	LastUpdated Timestamp      `json:"last_updated"`
	Context     map[string]any `json:"context,omitempty"`
}

func (s EntityState) Domain() string { return EntityDomain(s.EntityID) }

// FriendlyName returns attributes.friendly_name, falling back to the entity id.
func (s EntityState) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// Timestamp is a hub timestamp that re-encodes exactly as it was received.
type Timestamp struct {
	time.Time
	raw string
}

func (t Timestamp) String() string {
	if t.raw != "" {
		return t.raw
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp{Time: parsed, raw: s}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw == "" && t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}
