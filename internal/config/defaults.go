package config

import (
	"path/filepath"
	"time"
)

// Defaults returns the configuration used before the file and environment
// are applied. Safety starts strict: level 3 with the usual critical domains.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout: Duration{10 * time.Second},
		},
		Safety: SafetyConfig{
			Level:           3,
			CriticalDomains: defaultCriticalDomains(),
			BlockedEntities: []string{},
			AllowedEntities: []string{},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultConfigDir(), "actions.log"),
			Level:   "INFO",
			AuditDB: filepath.Join(DefaultConfigDir(), "audit.db"),
		},
	}
}

func defaultCriticalDomains() []string {
	return []string{"lock", "alarm_control_panel", "cover"}
}
