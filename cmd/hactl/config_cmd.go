package main

import (
	"errors"
	"fmt"
	"io/fs"

	"hactl/internal/config"

	"github.com/spf13/cobra"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file from the built-in template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := c.resolveConfigPath()
			if err := config.Init(cfgPath, force); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			fmt.Fprintf(c.stdout, "✓ Configuration created at: %s\n\n", cfgPath)
			fmt.Fprintln(c.stdout, "Next steps:")
			fmt.Fprintln(c.stdout, "1. Edit the config file and set your Home Assistant URL")
			fmt.Fprintf(c.stdout, "2. Set the %s environment variable or add the token to the config\n", config.EnvToken)
			fmt.Fprintln(c.stdout, "3. Run 'hactl test' to verify the connection")
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (token masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.resolveConfigPath())
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, config.Sanitize(cfg))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <path>",
		Short: "Get one config value (e.g. safety.level)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.resolveConfigPath())
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, val)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.stdout, c.resolveConfigPath())
		},
	})

	return cmd
}
