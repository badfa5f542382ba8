package glob

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"lock.*", "lock.front_door", true},
		{"lock.*", "switch.lock_pump", false},
		{"switch.outdoor_*", "switch.outdoor_pump", true},
		{"switch.outdoor_*", "switch.indoor_pump", false},
		{"*", "light.kitchen", true},
		{"light.kitchen", "light.kitchen", true},
		{"light.kitchen", "light.kitchen_2", false},
		{"light.kitchen", "lightxkitchen", false},
		{"light.?", "light.a", true},
		{"light.?", "light.ab", false},
		{"sensor.temp_[0-9]", "sensor.temp_4", true},
		{"sensor.temp_[!0-9]", "sensor.temp_4", false},
		{"sensor.temp_[!0-9]", "sensor.temp_x", true},
		{"Lock.*", "lock.front_door", false},
		{"*.garage*", "cover.garage_door", true},
		{"[", "light.kitchen", false},
		{"[", "[", true},
		{"light.[a-", "light.[a-", true},
		{"light.[]]", "light.]", true},
		{"light.[!]]", "light.]", false},
		{"light.[!]]", "light.x", true},
		{"a.b+c(d)", "a.b+c(d)", true},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.name); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatch_SlashIsOrdinary(t *testing.T) {
	tests := []struct {
		pattern, name string
	}{
		{"switch.*", "switch.pump/../x"},
		{"switch.?ump", "switch./ump"},
		{"switch.[!a]ump", "switch./ump"},
		{"*", "a/b"},
	}
	for _, tt := range tests {
		if !Match(tt.pattern, tt.name) {
			t.Errorf("Match(%q, %q) = false, want true", tt.pattern, tt.name)
		}
	}
}

func TestMatch_BackslashIsLiteral(t *testing.T) {
	if !Match(`switch.a\b`, `switch.a\b`) {
		t.Error(`switch.a\b should match itself`)
	}
	if Match(`switch.a\b`, `switch.ab`) {
		t.Error(`backslash must not act as an escape`)
	}
	if !Match(`switch.a\*`, `switch.a\xyz`) {
		t.Error(`star after a backslash must still be a wildcard`)
	}
	if !Match(`x.[\]`, `x.\`) {
		t.Error(`backslash inside a class must be literal`)
	}
}

func TestMatch_CaretIsLiteralInClass(t *testing.T) {
	if !Match("light.[^a]", "light.^") {
		t.Error("[^a] should match a literal caret")
	}
	if !Match("light.[^a]", "light.a") {
		t.Error("[^a] should match 'a'")
	}
	if Match("light.[^a]", "light.b") {
		t.Error("[^a] must not be a negated class")
	}
	if !Match("^light.*", "^light.x") || Match("^light.*", "light.x") {
		t.Error("leading caret outside a class is literal")
	}
}

func TestMatchAny(t *testing.T) {
	p, ok := MatchAny([]string{"light.*", "lock.*"}, "lock.back")
	if !ok || p != "lock.*" {
		t.Fatalf("got %q %v", p, ok)
	}
	if _, ok := MatchAny(nil, "lock.back"); ok {
		t.Fatal("empty pattern list should not match")
	}
}

func TestValidate(t *testing.T) {
	for _, good := range []string{"lock.*", "a[!b]c", "sensor.[a-z]*", "[", "light.[a-", `x\`, "[^a]"} {
		if err := Validate(good); err != nil {
			t.Errorf("%q: unexpected error %v", good, err)
		}
	}
	for _, bad := range []string{"light.[z-a]", "sensor.[!9-0]"} {
		if err := Validate(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
