package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hactl/internal/audit"
	"hactl/internal/config"
	"hactl/internal/control"
	"hactl/internal/domain"
	"hactl/internal/hass"
	"hactl/internal/logging"
	"hactl/internal/security"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := &cli{stdout: stdout, stderr: stderr, logger: logging.Console(stderr)}
	root := app.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		app.renderError(err, args)
		return 1
	}
	return 0
}

// cli carries the output streams and per-invocation state shared by commands.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string // --config flag
	logger     *slog.Logger
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hactl",
		Short:         "Home Assistant control CLI with a safety policy",
		Long:          "hactl queries entity states and calls services on a Home Assistant hub.\nMutating actions pass through a configurable safety policy and are audited.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("hactl version {{.Version}}\n")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to config.yaml (default: $HACTL_CONFIG or ~/.config/hactl/config.yaml)")

	root.AddCommand(c.testCmd())
	root.AddCommand(c.listCmd())
	root.AddCommand(c.stateCmd())
	root.AddCommand(c.controlCmd("on", "Turn on an entity", domain.ActionTurnOn))
	root.AddCommand(c.controlCmd("off", "Turn off an entity", domain.ActionTurnOff))
	root.AddCommand(c.controlCmd("toggle", "Toggle an entity on/off", domain.ActionToggle))
	root.AddCommand(c.setCmd())
	root.AddCommand(c.callCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(c.doctorCmd())
	return root
}

// resolveConfigPath returns the config path from --config, $HACTL_CONFIG or default.
func (c *cli) resolveConfigPath() string {
	return config.ResolvePath(c.configPath)
}

// session is everything a hub command needs, built from the loaded config.
type session struct {
	cfg        *config.Config
	dispatcher *control.Dispatcher
	closers    []io.Closer
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}

// open loads the config and wires logging, audit, policy and the API client.
func (c *cli) open() (*session, error) {
	cfg, err := config.Load(c.resolveConfigPath())
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Setup(cfg.Logging, c.stderr)
	auditLog := logger
	if err != nil {
		c.logger.Warn("file logging unavailable, audit lines go to stderr", "path", cfg.Logging.Path, "err", err)
		logger, logCloser = c.logger, nil
		auditLog = logging.Fallback(c.stderr)
	}
	c.logger = logger
	s := &session{cfg: cfg}
	if logCloser != nil {
		s.closers = append(s.closers, logCloser)
	}

	auditCfg := audit.Config{Log: auditLog}
	if cfg.Logging.Enabled && cfg.Logging.AuditDB != "" {
		store, err := audit.NewSQLiteStore(cfg.Logging.AuditDB, logger)
		if err != nil {
			logger.Warn("audit database unavailable", "path", cfg.Logging.AuditDB, "err", err)
		} else {
			auditCfg.Store = store
			s.closers = append(s.closers, store)
		}
	}
	auditor := audit.NewLogger(auditCfg)
	logger = logger.With("invocation", auditor.InvocationID())

	client := hass.NewClient(hass.ClientConfig{
		BaseURL: cfg.Server.URL,
		Token:   cfg.Server.Token,
		Timeout: cfg.Server.Timeout.Duration,
		Logger:  logger,
	})

	s.dispatcher = control.New(control.Config{
		Hub:    client,
		Policy: security.NewEngine(cfg.Safety, logger),
		Audit:  auditor,
		Logger: logger,
	})
	return s, nil
}
