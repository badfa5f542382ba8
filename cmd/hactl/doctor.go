package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hactl/internal/audit"
	"hactl/internal/config"
	"hactl/internal/hass"
	"hactl/internal/logging"

	"github.com/spf13/cobra"
)

// doctorReport counts and prints check results.
type doctorReport struct {
	w                      io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	r.passed++
	fmt.Fprintf(r.w, "  [PASS] %-16s %s\n", check, detail)
}

func (r *doctorReport) warn(check, detail string) {
	r.warned++
	fmt.Fprintf(r.w, "  [WARN] %-16s %s\n", check, detail)
}

func (r *doctorReport) fail(check, detail string) {
	r.failed++
	fmt.Fprintf(r.w, "  [FAIL] %-16s %s\n", check, detail)
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the configuration and hub connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := c.resolveConfigPath()
			r := &doctorReport{w: c.stdout}
			fmt.Fprintf(c.stdout, "hactl doctor v%s\n\n", version)

			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s (environment only)", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config", err.Error())
				return r.finish(c.stdout)
			}
			r.pass("Config", "valid")
			r.pass("Safety level", fmt.Sprintf("%d", cfg.Safety.Level))
			if cfg.Safety.Level == 0 {
				r.warn("Safety", "level 0 disables every check")
			}

			if cfg.Logging.Enabled {
				if err := checkWritableDir(filepath.Dir(cfg.Logging.Path)); err != nil {
					r.fail("Action log", err.Error())
				} else {
					r.pass("Action log", cfg.Logging.Path)
				}
				if cfg.Logging.AuditDB != "" {
					store, err := audit.NewSQLiteStore(cfg.Logging.AuditDB, c.logger)
					if err != nil {
						r.fail("Audit database", err.Error())
					} else {
						store.Close()
						r.pass("Audit database", cfg.Logging.AuditDB)
					}
				}
			} else {
				r.warn("Action log", "logging disabled, decisions are not audited")
			}

			client := hass.NewClient(hass.ClientConfig{
				BaseURL:    cfg.Server.URL,
				Token:      cfg.Server.Token,
				Timeout:    cfg.Server.Timeout.Duration,
				MaxRetries: 1,
				Logger:     logging.Console(io.Discard),
			})
			if msg, err := client.TestConnection(cmd.Context()); err != nil {
				r.fail("Home Assistant", err.Error())
			} else {
				r.pass("Home Assistant", fmt.Sprintf("%s (%s)", cfg.Server.URL, msg))
			}

			return r.finish(c.stdout)
		},
	}
}

func (r *doctorReport) finish(w io.Writer) error {
	fmt.Fprintf(w, "\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".hactl-doctor-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
