package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/experiment"
	"github.com/tree-dbscan/tdbscan-launcher/launch/sweep"
)

var runResultsPath string // Optional CSV the run's summary row is written to

// runCmd launches one experiment on the allocated hosts
var runCmd = &cobra.Command{
	Use:   "run <num-backends> <fan-in> <xml> <input-trace> <output-prefix> [reference-trace]",
	Short: "Plan the tree, launch one TreeDBSCAN run and summarize its statistics",
	Args:  cobra.RangeArgs(5, 6),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		mode, err := launch.ParseRunMode(modeName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		backends, err := parseCount("num-backends", args[0], 1)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fanIn, err := parseCount("fan-in", args[1], 1)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		in := clusteringInputs{ConfigXML: args[2], Trace: args[3], OutputPrefix: args[4]}
		if len(args) == 6 {
			in.ReferenceTrace = args[5]
		}

		runner, err := newRunner(cfg, mode, in)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, runErr := runner.Run(ctx, experiment.Params{Backends: backends, FanIn: fanIn, Prefix: in.OutputPrefix})
		cell := sweep.Cell{ExperimentID: 1, Backends: backends, FanIn: fanIn, Iteration: 1}
		row := sweep.NewRow(cell, runner.Measure(res), runErr)
		logRow(row)

		if runResultsPath != "" {
			if err := writeRows(runResultsPath, row); err != nil {
				logrus.Errorf("%v", err)
			}
		}
		if runErr != nil {
			logrus.Errorf("%v", runErr)
			code := 1
			if res != nil && res.Status != nil {
				code = exitCode(runErr, res.Status.ExitCode())
			}
			os.Exit(code)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&modeName, "mode", launch.Standard.String(), "Run mode: standard (tree spawns backends) or attach (backends launched separately)")
	runCmd.Flags().StringVar(&runResultsPath, "results", "", "Write the run's summary row to this CSV file")
}

func logRow(row sweep.Row) {
	logrus.WithFields(logrus.Fields{
		"experiment":      row.ExperimentID,
		"backends":        row.Backends,
		"fan_in":          row.FanIn,
		"total_resources": row.TotalResources,
		"points":          row.ClusteringPoints,
		"local_hulls":     row.LocalHulls,
		"global_clusters": row.GlobalClusters,
		"total_time":      row.TotalTime,
		"status":          row.Status,
	}).Info("Experiment summary")
}

// writeRows writes a fresh result table holding rows to path.
func writeRows(path string, rows ...sweep.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	table := &sweep.Table{Rows: rows}
	if err := table.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	logrus.Infof("Results written to '%s'", path)
	return f.Close()
}
