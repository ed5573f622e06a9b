package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/emontero/collmean/bench"
	"github.com/emontero/collmean/collective"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		totalSize  int
		perMember  int
		groupSizes []int
		iterations int
		output     string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "study scaling behavior, memory footprint and comm/compute balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "strong scaling, total problem size %d\n", totalSize)
			strong, err := bench.StrongScaling(runner, totalSize, groupSizes, iterations, rootFlags.seed)
			if err != nil {
				return err
			}
			for _, s := range strong {
				fmt.Fprintf(out, "  %2d members, %6d values each: %10.2f us\n",
					s.GroupSize, s.PayloadSize, s.AvgMicros)
			}

			fmt.Fprintf(out, "\nweak scaling, %d values per member\n", perMember)
			weak, err := bench.WeakScaling(runner, perMember, groupSizes, iterations, rootFlags.seed)
			if err != nil {
				return err
			}
			for _, s := range weak {
				fmt.Fprintf(out, "  %2d members, total size %6d: %10.2f us\n",
					s.GroupSize, s.PayloadSize*s.GroupSize, s.AvgMicros)
			}

			fmt.Fprintf(out, "\nmemory footprint, %d members\n", rootFlags.procs)
			memory, err := bench.MemoryFootprint(
				runner, bench.DefaultPlan().PayloadSizes, rootFlags.procs, iterations, rootFlags.seed)
			if err != nil {
				return err
			}
			for _, s := range memory {
				fmt.Fprintf(out, "  payload %6d: rss %s, heap %s\n",
					s.PayloadSize, humanize.IBytes(s.RSSBytes), humanize.IBytes(s.HeapAllocBytes))
			}

			fmt.Fprintf(out, "\ncommunication vs computation, %d members\n", rootFlags.procs)
			var commComp []bench.CommCompSample
			err = runner(rootFlags.procs, func(c *collective.Comm) error {
				got, valid, runErr := bench.CommVsCompute(
					c, []int{100, 1000, 10000, 100000}, rootFlags.seed)
				if runErr != nil {
					return runErr
				}
				if valid {
					commComp = got
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, s := range commComp {
				total := s.ComputeMicros + s.CommMicros
				if total == 0 {
					total = 1
				}
				fmt.Fprintf(out, "  N=%6d: compute %8.2f us (%4.1f%%), communication %8.2f us (%4.1f%%)\n",
					s.N, s.ComputeMicros, 100*s.ComputeMicros/total,
					s.CommMicros, 100*s.CommMicros/total)
			}

			if output != "" {
				report := bench.NewReport(append(strong, weak...))
				if err := report.Save(output); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nscaling samples written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&totalSize, "total", 10000, "total problem size for strong scaling")
	cmd.Flags().IntVar(&perMember, "per-member", 1000, "per-member share for weak scaling")
	cmd.Flags().IntSliceVar(&groupSizes, "group-sizes", []int{1, 2, 4, 8, 16}, "group sizes to sweep")
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 10, "iterations per configuration")
	cmd.Flags().StringVarP(&output, "output", "o", "", "optional CSV path for the scaling samples")
	return cmd
}
