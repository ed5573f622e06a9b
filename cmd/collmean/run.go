package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emontero/collmean/average"
	"github.com/emontero/collmean/collective"
)

func newRunCommand() *cobra.Command {
	var valuesPerMember int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the average pipeline once and print every member's view",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}

			size := rootFlags.procs
			results := make([]average.Result, size)
			err = runner(size, func(c *collective.Comm) error {
				p := &average.Pipeline{
					Comm:     c,
					Role:     average.RoleFor(c.Rank(), &average.Coordinator{N: valuesPerMember}),
					BaseSeed: rootFlags.seed,
				}
				res, runErr := p.Run()
				if runErr != nil {
					return runErr
				}
				results[c.Rank()] = res
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "group of %d members, %d values each\n\n", size, valuesPerMember)
			for _, res := range results {
				fmt.Fprintf(out, "member %d:\n", res.Rank)
				fmt.Fprint(out, "  first values: ")
				for i, v := range res.Sample {
					if i > 0 {
						fmt.Fprint(out, ", ")
					}
					fmt.Fprintf(out, "%.2f", v)
				}
				if res.N > len(res.Sample) {
					fmt.Fprintf(out, ", ... (%d more)", res.N-len(res.Sample))
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "  partial sum:  %.2f\n", res.Partial)
				fmt.Fprintf(out, "  generate %.2f us, reduce %.2f us, broadcast %.2f us\n",
					res.GenerateMicros, res.ReduceMicros, res.BcastMicros)
			}

			coord := results[0]
			fmt.Fprintf(out, "\ntotal sum across the group: %.2f\n", coord.Total)
			fmt.Fprintf(out, "total values:               %d\n", coord.N*coord.Size)
			fmt.Fprintf(out, "global average:             %.4f\n", coord.Mean)
			return nil
		},
	}
	cmd.Flags().IntVarP(&valuesPerMember, "values", "n", 1000, "values generated per member")
	return cmd
}
