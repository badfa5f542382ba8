package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test connection to Home Assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			msg, err := s.dispatcher.Test(cmd.Context())
			if err != nil {
				return &connectionError{err: err}
			}
			fmt.Fprintf(c.stdout, "✓ Connected to Home Assistant successfully (%s)\n", msg)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list [domain]",
		Short: "List all entities or filter by domain (e.g. light, switch)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			states, err := s.dispatcher.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(states) == 0 {
				if filter != "" {
					fmt.Fprintf(c.stdout, "No entities found for domain: %s\n", filter)
				} else {
					fmt.Fprintln(c.stdout, "No entities found")
				}
				return nil
			}
			if asJSON {
				return writeJSON(c.stdout, listView(states))
			}
			return writeTable(c.stdout, states)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (c *cli) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <entity_id>",
		Short: "Get the state of one entity as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.dispatcher.State(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, stateView(st))
		},
	}
}

// controlCmd builds on, off and toggle.
func (c *cli) controlCmd(name, short, action string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   name + " <entity_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.dispatcher.Control(cmd.Context(), action, args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "✓ %s\n", res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm a critical action")
	return cmd
}

func (c *cli) setCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "set <entity_id> <key=value>...",
		Short:   "Set attributes on an entity (e.g. brightness, color)",
		Example: "  hactl set light.kitchen brightness=128 transition=2",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.dispatcher.Set(cmd.Context(), args[0], args[1:], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "✓ %s\n", res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm a critical action")
	return cmd
}

func (c *cli) callCmd() *cobra.Command {
	var (
		force   bool
		payload string
	)
	cmd := &cobra.Command{
		Use:   "call <domain.service> [key=value...]",
		Short: "Call any Home Assistant service",
		Example: `  hactl call light.turn_on entity_id=light.hall brightness_pct=40
  hactl call climate.set_temperature --json '{"entity_id":"climate.living","temperature":21.5}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.dispatcher.Call(cmd.Context(), args[0], args[1:], payload, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "✓ %s\n", res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm a critical action")
	cmd.Flags().StringVar(&payload, "json", "", "service data as a JSON object (replaces key=value parameters)")
	return cmd
}
