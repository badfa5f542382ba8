package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hactl/internal/domain"
	"hactl/internal/hass"
	"hactl/internal/security"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeTable(w io.Writer, states []domain.EntityState) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY ID\tSTATE\tFRIENDLY NAME")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.EntityID, s.State, s.FriendlyName())
	}
	return tw.Flush()
}

type listEntry struct {
	EntityID     string         `json:"entity_id"`
	State        string         `json:"state"`
	FriendlyName string         `json:"friendly_name"`
	Attributes   map[string]any `json:"attributes"`
}

func listView(states []domain.EntityState) []listEntry {
	out := make([]listEntry, 0, len(states))
	for _, s := range states {
		out = append(out, listEntry{
			EntityID:     s.EntityID,
			State:        s.State,
			FriendlyName: s.FriendlyName(),
			Attributes:   s.Attributes,
		})
	}
	return out
}

type stateEntry struct {
	EntityID    string           `json:"entity_id"`
	State       string           `json:"state"`
	Attributes  map[string]any   `json:"attributes"`
	LastChanged domain.Timestamp `json:"last_changed"`
	LastUpdated domain.Timestamp `json:"last_updated"`
}

func stateView(s *domain.EntityState) stateEntry {
	return stateEntry{
		EntityID:    s.EntityID,
		State:       s.State,
		Attributes:  s.Attributes,
		LastChanged: s.LastChanged,
		LastUpdated: s.LastUpdated,
	}
}

// connectionError marks a failed `hactl test`.
type connectionError struct{ err error }

func (e *connectionError) Error() string { return "connection failed: " + e.err.Error() }
func (e *connectionError) Unwrap() error { return e.err }

// renderError prints err for the caller. Confirmation guidance goes to
// stdout so an agent driving the CLI reads it with the command output.
func (c *cli) renderError(err error, args []string) {
	var (
		policyErr *domain.PolicyError
		cfgErr    *domain.ConfigError
		inputErr  *domain.InputError
		connErr   *connectionError
		apiErr    *hass.APIError
	)
	switch {
	case errors.As(err, &policyErr) && policyErr.Kind == domain.ConfirmationRequired:
		fmt.Fprint(c.stdout, confirmationGuidance(policyErr.Decision, args))
	case errors.As(err, &policyErr):
		fmt.Fprint(c.stderr, denialMessage(policyErr.Decision))
	case errors.As(err, &cfgErr):
		fmt.Fprintf(c.stderr, "Configuration error: %v\n", cfgErr)
		fmt.Fprintln(c.stderr, "\nHint: run 'hactl config init' to create a config file")
	case errors.As(err, &connErr):
		fmt.Fprintf(c.stderr, "✗ Connection failed: %v\n", connErr.err)
	case errors.As(err, &inputErr):
		fmt.Fprintf(c.stderr, "Error: %v\n", inputErr)
	case errors.As(err, &apiErr):
		fmt.Fprintf(c.stderr, "Error: %v\n", apiErr)
	default:
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
	}
}

func denialMessage(d domain.Decision) string {
	switch d.Rule {
	case security.RuleBlocklist:
		return fmt.Sprintf("✗ Entity %s is BLOCKED in configuration.\n"+
			"This entity cannot be controlled via hactl.\n"+
			"Remove it from safety.blocked_entities to allow.\n", d.EntityID)
	case security.RuleAllowlist:
		return fmt.Sprintf("✗ Entity %s is not in the allowlist.\n"+
			"Add it to safety.allowed_entities to allow access.\n", d.EntityID)
	}
	return fmt.Sprintf("✗ %s on %s denied: %s\n", d.Action, d.EntityID, d.Reason)
}

func confirmationGuidance(d domain.Decision, args []string) string {
	var b strings.Builder
	b.WriteString("⚠️  CRITICAL ACTION REQUIRES CONFIRMATION\n\n")
	fmt.Fprintf(&b, "Action: %s on %s\n", d.Action, d.EntityID)
	if d.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", d.Reason)
	}
	b.WriteString("\nThis is a critical operation that requires explicit user approval.\n")
	b.WriteString("Ask the user for confirmation (e.g., 'Do you want to proceed?').\n")
	b.WriteString("If the user confirms, retry with the --force flag.\n\n")
	fmt.Fprintf(&b, "Example: hactl %s --force\n", shellJoin(args))
	return b.String()
}

// shellJoin quotes args that a POSIX shell would split or expand.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`*?[]{}()<>|&;#~!") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
