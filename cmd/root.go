package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/experiment"
	"github.com/tree-dbscan/tdbscan-launcher/launch/hosts"
	"github.com/tree-dbscan/tdbscan-launcher/launch/stats"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Path to tdbscan.yaml
	envFile    string // Optional .env file loaded before host discovery
	modeName   string // Run mode: standard or attach
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tdbscan-launcher",
	Short: "Launch, measure and sweep distributed TreeDBSCAN runs",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if err := loadEnvFile(envFile); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to tdbscan.yaml (default ./tdbscan.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before host discovery")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(planCmd)
}

// clusteringInputs are the positional arguments shared by run and sweep.
type clusteringInputs struct {
	ConfigXML      string
	Trace          string
	OutputPrefix   string
	ReferenceTrace string
}

func (c clusteringInputs) frontEndArgs() []string {
	return []string{"-d", c.ConfigXML, "-i", c.Trace}
}

func (c clusteringInputs) referenceTable() string {
	if c.ReferenceTrace == "" {
		return ""
	}
	return stats.ReferenceTable(c.ReferenceTrace)
}

// parseCount parses a positional integer argument that must be >= min.
func parseCount(name, raw string, min int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", launch.ErrConfiguration, name, raw)
	}
	if n < min {
		return 0, fmt.Errorf("%w: %s must be >= %d, got %d", launch.ErrConfiguration, name, min, n)
	}
	return n, nil
}

// taskCount probes the input trace header; an unreadable header counts 0.
func taskCount(trace string) int {
	n, err := stats.ReadTaskCount(trace)
	if err != nil {
		logrus.Warnf("NumTasks set to 0: %v", err)
		return 0
	}
	return n
}

// newRunner discovers the allocated hosts and assembles the experiment
// runner shared by run and sweep.
func newRunner(cfg Config, mode launch.RunMode, in clusteringInputs) (*experiment.Runner, error) {
	hostList, err := hosts.Discover(hosts.DefaultSources(), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	logrus.Infof("%d hosts available, front-end on %s", len(hostList), hostList[0])

	rc := experiment.Config{
		Mode:           mode,
		Hosts:          hostList,
		HostSuffix:     cfg.HostSuffix,
		WorkDir:        cfg.WorkDir,
		Generator:      cfg.Tools.TopologyGenerator,
		FrontEnd:       launch.Command{Name: "FE", Path: cfg.Tools.FrontEnd, Args: in.frontEndArgs()},
		Backend:        launch.Command{Name: "BE", Path: cfg.Tools.Backend},
		Launcher:       cfg.Tools.Launcher,
		AttachDelay:    cfg.AttachDelay,
		StartupTimeout: cfg.StartupTimeout,
		Tasks:          taskCount(in.Trace),
		ReferenceTable: in.referenceTable(),
		Output:         os.Stdout,
	}
	if rc.ReferenceTable != "" {
		rc.Scorer = cfg.Scorer()
	}
	return experiment.NewRunner(rc), nil
}

// exitCode maps a failed command to the process exit status: the engine's
// own status when it failed, 1 otherwise.
func exitCode(err error, engineStatus int) int {
	if errors.Is(err, launch.ErrEngineProcess) && engineStatus > 0 {
		return engineStatus
	}
	return 1
}
