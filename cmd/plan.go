package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/topology"
)

// writePlan prints the topology spec and the resources a run would need.
func writePlan(w io.Writer, backends, fanIn int, mode launch.RunMode) error {
	spec, err := topology.Plan(backends, fanIn, mode)
	if err != nil {
		return err
	}
	topo := spec.String()
	if topo == "" {
		topo = "(single front-end node, no generation)"
	}
	_, err = fmt.Fprintf(w, "NumBackends: %d\nFanIn: %d\nMode: %s\nTopologySpec: %s\nTotalResources: %d\n",
		backends, fanIn, mode, topo, spec.TotalResources())
	return err
}

// planCmd shows what the planner would generate without launching anything
var planCmd = &cobra.Command{
	Use:   "plan <num-backends> <fan-in>",
	Short: "Print the topology spec and total resources for a backend count and fan-in",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
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
		if err := writePlan(cmd.OutOrStdout(), backends, fanIn, mode); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	planCmd.Flags().StringVar(&modeName, "mode", launch.Standard.String(), "Run mode: standard or attach")
}
