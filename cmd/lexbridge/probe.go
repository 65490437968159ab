package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/backend"
)

func newProbeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe native backends and list their states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg.Registry.EagerProbe = true

			s, err := c.open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			p := newPalette(c.opts.noColor)
			infos := s.bridge.Registry().Backends()
			if len(infos) == 0 {
				_, err := fmt.Fprintln(c.stdout, "no native backends declared")
				return err
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND\tSTATE\tRESOLVER\tLANGUAGES\tDETAIL")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					info.ID, stateColor(p, info.State).Sprint(info.State), info.Resolver,
					languages(info), detail(info))
			}
			return tw.Flush()
		},
	}
}

func languages(info backend.Info) string {
	names := make([]string, len(info.Languages))
	for i, l := range info.Languages {
		names[i] = l.String()
	}
	return joinOr(names, "-")
}

func detail(info backend.Info) string {
	switch {
	case len(info.Missing) > 0:
		return "missing " + joinOr(info.Missing, "")
	case info.Err != nil:
		return info.Err.Error()
	case info.Calls > 0:
		return fmt.Sprintf("%d calls", info.Calls)
	}
	return ""
}

func stateColor(p *palette, s backend.State) *color.Color {
	switch s {
	case backend.StateAvailable:
		return p.ok
	case backend.StateUnavailable, backend.StateFailed:
		return p.bad
	}
	return p.faint
}
