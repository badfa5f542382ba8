package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"hactl/internal/domain"
	"hactl/internal/glob"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for hactl.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Safety  SafetyConfig  `yaml:"safety" json:"safety"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	URL     string   `yaml:"url" json:"url"`
	Token   string   `yaml:"token" json:"token"`
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// SafetyConfig is the safety policy. Patterns are shell globs (lock.*).
type SafetyConfig struct {
	Level           int      `yaml:"level" json:"level"` // 0 = off, 2 = gate all writes, 3 = gate critical domains
	CriticalDomains []string `yaml:"critical_domains" json:"critical_domains"`
	BlockedEntities []string `yaml:"blocked_entities" json:"blocked_entities"`
	AllowedEntities []string `yaml:"allowed_entities" json:"allowed_entities"` // empty = allow all
}

type LoggingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Level   string `yaml:"level" json:"level"`
	AuditDB string `yaml:"audit_db" json:"audit_db"` // empty disables the sqlite audit table
}

// Duration reads "10s" style values (or bare seconds) from YAML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs int
	if err := node.Decode(&secs); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }
func (d Duration) MarshalJSON() ([]byte, error) { return []byte(`"` + d.String() + `"`), nil }

// Environment variables read by Load.
const (
	EnvConfigPath = "HACTL_CONFIG"
	EnvURL        = "HA_URL"
	EnvToken      = "HA_TOKEN"
)

//go:embed config.example.yaml
var exampleConfig []byte

// DefaultConfigDir returns the default config directory (~/.config/hactl).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hactl"
	}
	return filepath.Join(home, ".config", "hactl")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// ResolvePath picks the config file: explicit flag, then $HACTL_CONFIG, then default.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return ExpandPath(flagPath)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return ExpandPath(env)
	}
	return DefaultConfigPath()
}

// Load resolves defaults <- file (if present) <- environment and validates
// the result. A missing file is not an error as long as HA_URL and HA_TOKEN
// supply the server settings.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{
				Problems: []string{fmt.Sprintf("cannot parse config file %s: %v", path, err)},
				Err:      err,
			}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, &domain.ConfigError{
			Problems: []string{fmt.Sprintf("cannot read config file %s: %v", path, err)},
			Err:      err,
		}
	}

	applyEnv(cfg)

	cfg.Server.URL = strings.TrimRight(strings.TrimSpace(cfg.Server.URL), "/")
	cfg.Logging.Path = ExpandPath(cfg.Logging.Path)
	cfg.Logging.AuditDB = ExpandPath(cfg.Logging.AuditDB)
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Server.Token = v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Init writes the example config to path. An existing file is only replaced with force.
func Init(path string, force bool) error {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s: %w", path, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	// The file ends up holding a token.
	return os.WriteFile(path, exampleConfig, 0o600)
}

var validLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch {
	case cfg.Server.URL == "":
		errs = append(errs, "Home Assistant URL not configured. Set HA_URL or server.url in the config file")
	case !strings.HasPrefix(cfg.Server.URL, "http://") && !strings.HasPrefix(cfg.Server.URL, "https://"):
		errs = append(errs, "server.url must start with http:// or https://")
	}
	if cfg.Server.Token == "" {
		errs = append(errs, "Home Assistant token not configured. Set HA_TOKEN or server.token in the config file")
	}
	if cfg.Server.Timeout.Duration <= 0 {
		errs = append(errs, "server.timeout must be positive")
	}

	if cfg.Safety.Level < 0 || cfg.Safety.Level > 3 {
		errs = append(errs, "safety.level must be between 0 and 3")
	}
	errs = append(errs, checkPatterns("safety.blocked_entities", cfg.Safety.BlockedEntities)...)
	errs = append(errs, checkPatterns("safety.allowed_entities", cfg.Safety.AllowedEntities)...)

	if !contains(validLogLevels, cfg.Logging.Level) {
		errs = append(errs, "logging.level must be one of: "+strings.Join(validLogLevels, ", "))
	}
	if cfg.Logging.Enabled && cfg.Logging.Path == "" {
		errs = append(errs, "logging.path is required when logging is enabled")
	}

	if len(errs) > 0 {
		return &domain.ConfigError{Problems: errs}
	}
	return nil
}

func checkPatterns(field string, patterns []string) []string {
	var errs []string
	for _, p := range patterns {
		if err := glob.Validate(p); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid pattern %q", field, p))
		}
	}
	return errs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
