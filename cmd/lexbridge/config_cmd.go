package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	var showEnv bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration after applying the config file,
LEXBRIDGE_* environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if showEnv {
				vars := config.EnvVars()
				slices.Sort(vars)
				for _, v := range vars {
					fmt.Fprintln(c.stdout, v)
				}
				return nil
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if p := c.configPath(); p != "" {
				fmt.Fprintf(c.stdout, "# %s\n", p)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&showEnv, "env", false, "list supported environment variables")
	return cmd
}
