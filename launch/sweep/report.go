package sweep

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

type cellKey struct {
	backends, fanIn int
}

type cellSummary struct {
	key        cellKey
	resources  int
	totalTimes []float64
	failed     int
}

// WriteSummary prints one aligned line per (backends, fan-in) pair: the
// resources used, how many repetitions succeeded and their mean total time.
func (t *Table) WriteSummary(w io.Writer) error {
	var order []*cellSummary
	byKey := make(map[cellKey]*cellSummary)
	for _, r := range t.Rows {
		k := cellKey{r.Backends, r.FanIn}
		cs, ok := byKey[k]
		if !ok {
			cs = &cellSummary{key: k}
			byKey[k] = cs
			order = append(order, cs)
		}
		if !r.OK() {
			cs.failed++
			continue
		}
		cs.resources = r.TotalResources
		cs.totalTimes = append(cs.totalTimes, r.TotalTime)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\n=== Sweep Summary (%d runs, %d failed) ===\n\n", len(t.Rows), t.Failed())

	header := []string{"Backends", "FanIn", "Resources", "Runs", "MeanTotalTime"}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, cs := range order {
		mean := "N/A"
		if len(cs.totalTimes) > 0 {
			mean = fmt.Sprintf("%.4f", stat.Mean(cs.totalTimes, nil))
		}
		runs := len(cs.totalTimes) + cs.failed
		fmt.Fprintln(tw, strings.Join([]string{
			fmt.Sprintf("%d", cs.key.backends),
			fmt.Sprintf("%d", cs.key.fanIn),
			fmt.Sprintf("%d", cs.resources),
			fmt.Sprintf("%d/%d", len(cs.totalTimes), runs),
			mean,
		}, "\t"))
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}
