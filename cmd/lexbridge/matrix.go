package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/matrix"
)

func newMatrixCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print which capabilities each language has",
		Long:  "Matrix probes every native backend and prints the language by capability table.",
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

			m := s.bridge.GetAvailability()
			if asJSON {
				out, err := matrixJSON(m)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.stdout, out)
				return err
			}
			return writeMatrix(c, m)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeMatrix(c *cli, m matrix.Matrix) error {
	p := newPalette(c.opts.noColor)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tPATTERN\tNATIVE\tDEGRADED\tACTIVE")
	for _, row := range m.Rows() {
		degraded := p.faint.Sprint("-")
		if row.Degraded {
			degraded = p.bad.Sprint("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Language, yesNo(p, row.Pattern), yesNo(p, row.Native), degraded, row.Active)
	}
	return tw.Flush()
}
