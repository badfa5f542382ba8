// Package params turns shell tokens and JSON strings into service call payloads.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"hactl/internal/domain"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBigInt // integer beyond int64, kept as exact decimal digits
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBigInt:
		return "bigint"
	default:
		return "string"
	}
}

// Value is a loosely typed service parameter.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) Bool() bool { return v.b }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }

// Any returns the Go value the variant holds.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBigInt:
		return json.Number(v.s)
	default:
		return v.s
	}
}

func (v Value) String() string { return fmt.Sprint(v.Any()) }

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// ParseValue types a raw token: boolean literal, then integer (exact at any
// size), then finite float, then the raw string.
func ParseValue(raw string) Value {
	switch strings.ToLower(raw) {
	case "true", "yes", "on":
		return Bool(true)
	case "false", "no", "off":
		return Bool(false)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return Int(n)
	}
	if errors.Is(err, strconv.ErrRange) {
		if bi, ok := new(big.Int).SetString(raw, 10); ok {
			return Value{kind: KindBigInt, s: bi.String()}
		}
	}
	// NaN and Inf cannot be sent as JSON, keep them as text.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Float(f)
	}
	return String(raw)
}

// ParseAssignment splits "key=value" on the first '='.
func ParseAssignment(token string) (string, Value, error) {
	key, raw, ok := strings.Cut(token, "=")
	if !ok || key == "" {
		return "", Value{}, &domain.InputError{Field: "parameter", Value: token, Err: domain.ErrMalformedParameter}
	}
	return key, ParseValue(raw), nil
}

// ParseAssignments builds a payload from key=value tokens. Later keys win.
func ParseAssignments(tokens []string) (map[string]any, error) {
	data := make(map[string]any, len(tokens))
	for _, tok := range tokens {
		key, val, err := ParseAssignment(tok)
		if err != nil {
			return nil, err
		}
		data[key] = val
	}
	return data, nil
}

// ParseJSONObject decodes a JSON object payload, keeping numbers exact.
func ParseJSONObject(payload string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &domain.InputError{Field: "json", Err: fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)}
	}
	if dec.More() {
		return nil, &domain.InputError{Field: "json", Err: fmt.Errorf("%w: trailing data", domain.ErrMalformedPayload)}
	}
	if data == nil {
		return nil, &domain.InputError{Field: "json", Err: fmt.Errorf("%w: expected an object", domain.ErrMalformedPayload)}
	}
	return data, nil
}

// TargetEntities extracts entity_id from a payload. A string or a list of
// strings is accepted; present reports whether the key exists at all.
func TargetEntities(data map[string]any) (ids []string, present bool, err error) {
	raw, ok := data["entity_id"]
	if !ok {
		return nil, false, nil
	}
	bad := &domain.InputError{Field: "entity_id", Err: fmt.Errorf("expected a string or list of strings")}
	switch v := raw.(type) {
	case string:
		return []string{v}, true, nil
	case Value:
		if v.Kind() != KindString {
			return nil, true, bad
		}
		return []string{v.Str()}, true, nil
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, true, bad
			}
			ids = append(ids, s)
		}
		if len(ids) == 0 {
			return nil, true, bad
		}
		return ids, true, nil
	default:
		return nil, true, bad
	}
}
