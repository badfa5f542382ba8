// Package audit records every safety decision: one text line through the
// application log and, when configured, one row in a sqlite database.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hactl/internal/domain"

	"github.com/google/uuid"
)

// Logger writes audit records for one invocation.
type Logger struct {
	log          *slog.Logger
	store        domain.AuditSink // nil when the sqlite trail is disabled
	invocationID string
	now          func() time.Time
}

type Config struct {
	Log   *slog.Logger
	Store domain.AuditSink
	// InvocationID tags every record of this process; generated when empty.
	InvocationID string
}

func NewLogger(cfg Config) *Logger {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.InvocationID == "" {
		cfg.InvocationID = uuid.NewString()
	}
	return &Logger{
		log:          cfg.Log,
		store:        cfg.Store,
		invocationID: cfg.InvocationID,
		now:          time.Now,
	}
}

func (l *Logger) InvocationID() string { return l.invocationID }

// FormatLine renders "ALLOWED: turn_on on light.kitchen [FORCED]".
func FormatLine(rec domain.AuditRecord) string {
	status := "ALLOWED"
	if !rec.Allowed {
		status = "DENIED"
	}
	line := fmt.Sprintf("%s: %s on %s", status, rec.Action, rec.EntityID)
	if rec.Forced {
		line += " [FORCED]"
	}
	return line
}

// Record writes the decision to the log, then to the store if there is one.
func (l *Logger) Record(ctx context.Context, d domain.Decision, force bool) error {
	rec := domain.RecordFor(d, force)
	rec.InvocationID = l.invocationID
	rec.Time = l.now()

	level := slog.LevelInfo
	switch {
	case d.Outcome == domain.OutcomeDenied:
		level = slog.LevelError
	case d.Outcome == domain.OutcomeRequiresConfirmation:
		level = slog.LevelWarn
	case force:
		level = slog.LevelWarn
	}
	l.log.Log(ctx, level, FormatLine(rec), "invocation", rec.InvocationID)

	if l.store == nil {
		return nil
	}
	if err := l.store.LogAudit(ctx, rec); err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	return nil
}
