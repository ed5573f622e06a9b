package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emontero/collmean/bench"
)

func newBenchCommand() *cobra.Command {
	var (
		iterations int
		output     string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "measure the collective primitives and the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			plan := bench.DefaultPlan()
			if configPath != "" {
				plan, err = bench.LoadPlan(configPath)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("iterations") {
				plan.Iterations = iterations
			}
			plan.Seed = rootFlags.seed
			if err := plan.Validate(); err != nil {
				return err
			}

			bar := progressbar.Default(int64(plan.Configurations()), "benchmarking")
			sweep := &bench.Sweep{
				Plan:     plan,
				Runner:   runner,
				Log:      log,
				OnSample: func(bench.TimingSample) { bar.Add(1) },
			}
			samples, err := sweep.Run(rootFlags.procs)
			if err != nil {
				return err
			}
			bar.Finish()

			report := bench.NewReport(samples)
			if output == "" {
				output = fmt.Sprintf("benchmark_results_%dprocs.csv", rootFlags.procs)
			}
			if err := report.Save(output); err != nil {
				return err
			}
			log.Info("report written",
				zap.String("path", output), zap.String("runID", report.ID.String()))

			fmt.Fprintln(cmd.OutOrStdout())
			return report.WriteText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 100, "iterations per configuration")
	cmd.Flags().StringVarP(&output, "output", "o", "", "result CSV path (default benchmark_results_<procs>procs.csv)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML benchmark plan")
	return cmd
}
