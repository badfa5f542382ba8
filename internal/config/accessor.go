package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GetByPath retrieves a config value by dot-notation path (e.g. "safety.level").
// Secrets are masked, the same way Sanitize masks them.
func GetByPath(cfg *Config, path string) (any, error) {
	data, err := json.Marshal(Sanitize(cfg))
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid array index: %s", key)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
	}
	return current, nil
}

// Sanitize returns a copy of the config with the token masked.
func Sanitize(cfg *Config) *Config {
	copy := *cfg
	copy.Safety.CriticalDomains = append([]string{}, cfg.Safety.CriticalDomains...)
	copy.Safety.BlockedEntities = append([]string{}, cfg.Safety.BlockedEntities...)
	copy.Safety.AllowedEntities = append([]string{}, cfg.Safety.AllowedEntities...)
	copy.Server.Token = MaskToken(cfg.Server.Token)
	return &copy
}

// MaskToken keeps only the last 4 characters: "***abcd".
func MaskToken(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}
