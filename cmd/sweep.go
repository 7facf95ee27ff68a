package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/sweep"
)

// SweepResultsSuffix is appended to the output prefix to name the table.
const SweepResultsSuffix = "_sweep_results.csv"

// sweepArgs are the parsed positional arguments of the sweep command.
type sweepArgs struct {
	Iterations  int
	MinBackends int
	MaxBackends int
	clusteringInputs
}

func parseSweepArgs(args []string) (sweepArgs, error) {
	var sa sweepArgs
	if len(args) < 6 || len(args) > 7 {
		return sa, fmt.Errorf("%w: want 6 or 7 arguments, got %d", launch.ErrConfiguration, len(args))
	}
	var err error
	if sa.Iterations, err = parseCount("iterations", args[0], 1); err != nil {
		return sa, err
	}
	if sa.MinBackends, err = parseCount("min-backends", args[1], 1); err != nil {
		return sa, err
	}
	if sa.MaxBackends, err = parseCount("max-backends", args[2], sa.MinBackends); err != nil {
		return sa, err
	}
	sa.clusteringInputs = clusteringInputs{ConfigXML: args[3], Trace: args[4], OutputPrefix: args[5]}
	if len(args) == 7 {
		sa.ReferenceTrace = args[6]
	}
	return sa, nil
}

// sweepCmd repeats runs over the (backends, fan-in, iteration) grid
var sweepCmd = &cobra.Command{
	Use:   "sweep <iterations> <min-backends> <max-backends> <xml> <input-trace> <output-prefix> [reference-trace]",
	Short: "Run every (backends, fan-in) pair of the halving grid and collect a result table",
	Args:  cobra.RangeArgs(6, 7),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		mode, err := launch.ParseRunMode(modeName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		sa, err := parseSweepArgs(args)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		cells, err := sweep.Grid(sa.MinBackends, sa.MaxBackends, sa.Iterations)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		runner, err := newRunner(cfg, mode, sa.clusteringInputs)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		tablePath := sa.OutputPrefix + SweepResultsSuffix
		meta := sweep.NewMetadata(sa.MinBackends, sa.MaxBackends, sa.Iterations)
		meta.Mode = mode.String()
		meta.Trace = sa.Trace
		meta.Reference = sa.ReferenceTrace
		meta.Experiments = len(cells)
		if err := sweep.WriteMetadata(sweep.SidecarPath(tablePath), meta); err != nil {
			logrus.Fatalf("%v", err)
		}

		f, err := os.Create(tablePath)
		if err != nil {
			logrus.Fatalf("Failed to create result table: %v", err)
		}
		defer func() { _ = f.Close() }()
		w, err := sweep.NewWriter(f)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Sweep %s: %d experiments, results in '%s'", meta.SweepID, len(cells), tablePath)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctl := &sweep.Controller{Run: runner.SweepFunc(sa.OutputPrefix), Out: w}
		table, sweepErr := ctl.RunCells(ctx, cells)
		if code := finishSweep(os.Stdout, table, sweepErr); code != 0 {
			stop()
			_ = f.Close()
			os.Exit(code)
		}
	},
}

// finishSweep prints the summary of the rows collected so far and returns
// the exit status: 1 when the sweep stopped before its last cell.
func finishSweep(out io.Writer, table *sweep.Table, sweepErr error) int {
	if err := table.WriteSummary(out); err != nil {
		logrus.Warnf("Printing summary: %v", err)
	}
	if sweepErr != nil {
		logrus.Errorf("Sweep stopped early: %v", sweepErr)
		return 1
	}
	return 0
}

func init() {
	sweepCmd.Flags().StringVar(&modeName, "mode", launch.Standard.String(), "Run mode: standard (tree spawns backends) or attach (backends launched separately)")
}
