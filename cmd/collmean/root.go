package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emontero/collmean/collective"
	"github.com/emontero/collmean/collective/inproc"
	"github.com/emontero/collmean/collective/simgroup"
)

var rootFlags struct {
	procs      int
	transport  string
	seed       int64
	timeout    time.Duration
	verbose    bool
	simLatency float64
	simRate    float64
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collmean",
		Short:         "compute a global average with collective communication",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := cmd.PersistentFlags()
	flags.IntVarP(&rootFlags.procs, "procs", "p", 4, "number of group members")
	flags.StringVarP(&rootFlags.transport, "transport", "t", "inproc",
		"group transport: inproc (goroutines, wall clock) or sim (virtual network, virtual clock)")
	flags.Int64Var(&rootFlags.seed, "seed", 42, "base seed for the value generators")
	flags.DurationVar(&rootFlags.timeout, "timeout", 2*time.Minute,
		"watchdog for stalled inproc groups; 0 disables it")
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "log every measurement")
	flags.Float64Var(&rootFlags.simLatency, "sim-latency", 50e-6,
		"simulated per-message latency in seconds")
	flags.Float64Var(&rootFlags.simRate, "sim-rate", 1e9,
		"simulated link bandwidth in bytes per second")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newBenchCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newAnalyzeCommand())
	return cmd
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !rootFlags.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}

func newRunner() (collective.Runner, error) {
	if rootFlags.procs < 1 {
		return nil, errors.Errorf("--procs must be positive, got %d", rootFlags.procs)
	}
	switch rootFlags.transport {
	case "inproc":
		return inproc.Runner(rootFlags.timeout), nil
	case "sim":
		return simgroup.Runner(simgroup.Config{
			Latency: rootFlags.simLatency,
			Rate:    rootFlags.simRate,
		}), nil
	default:
		return nil, errors.Errorf("unknown transport %q", rootFlags.transport)
	}
}
