package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/stats"
	"github.com/tree-dbscan/tdbscan-launcher/launch/sweep"
)

var processResultsPath string // CSV the processed experiment is written to

// processArgs are the positional arguments of the process command.
type processArgs struct {
	ExperimentID   int
	Trace          string
	FanIn          int
	Backends       int
	TotalResources int
	OutputPrefix   string
	ReferenceTrace string
}

func parseProcessArgs(args []string) (processArgs, error) {
	var pa processArgs
	if len(args) < 6 || len(args) > 7 {
		return pa, fmt.Errorf("%w: want 6 or 7 arguments, got %d", launch.ErrConfiguration, len(args))
	}
	var err error
	if pa.ExperimentID, err = parseCount("experiment-id", args[0], 1); err != nil {
		return pa, err
	}
	pa.Trace = args[1]
	if pa.FanIn, err = parseCount("fan", args[2], 1); err != nil {
		return pa, err
	}
	if pa.Backends, err = parseCount("num-backends", args[3], 1); err != nil {
		return pa, err
	}
	if pa.TotalResources, err = parseCount("total-resources", args[4], 1); err != nil {
		return pa, err
	}
	pa.OutputPrefix = args[5]
	if len(args) == 7 {
		pa.ReferenceTrace = args[6]
	}
	return pa, nil
}

// processExperiment aggregates the artifacts of a finished experiment into a
// one-row result table at outPath.
func processExperiment(ctx context.Context, cfg Config, pa processArgs, outPath string) (sweep.Row, error) {
	agg := &stats.Aggregator{}
	reference := ""
	if pa.ReferenceTrace != "" {
		reference = stats.ReferenceTable(pa.ReferenceTrace)
		agg.Scorer = cfg.Scorer()
	}

	summary, err := agg.Aggregate(ctx, stats.Artifacts{Prefix: pa.OutputPrefix}, pa.Backends, reference)
	cell := sweep.Cell{ExperimentID: pa.ExperimentID, Backends: pa.Backends, FanIn: pa.FanIn, Iteration: 1}
	row := sweep.NewRow(cell, &sweep.Measurement{
		Tasks:          taskCount(pa.Trace),
		TotalResources: pa.TotalResources,
		Summary:        summary,
	}, err)
	if err != nil {
		return row, err
	}
	return row, writeRows(outPath, row)
}

// processCmd summarizes an experiment that was run outside the launcher
var processCmd = &cobra.Command{
	Use:   "process <experiment-id> <input-trace> <fan> <num-backends> <total-resources> <output-prefix> [reference-trace]",
	Short: "Aggregate the artifacts of one finished experiment into a result row",
	Args:  cobra.RangeArgs(6, 7),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		pa, err := parseProcessArgs(args)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		row, err := processExperiment(cmd.Context(), cfg, pa, processResultsPath)
		if err != nil {
			logrus.Fatalf("Processing experiment %d: %v", pa.ExperimentID, err)
		}
		logRow(row)
	},
}

func init() {
	processCmd.Flags().StringVar(&processResultsPath, "out", "experiment_results.csv", "Result table to write")
}
