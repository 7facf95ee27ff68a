// Package sweep drives repeated runs over a deterministic grid of backend
// counts and fan-ins and accumulates their summaries into a result table.
package sweep

import (
	"fmt"
	"strconv"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// ExperimentTag separates the output prefix from the experiment id in
// per-run artifact names.
const ExperimentTag = "_experiment_"

// Cell is one run of the grid.
type Cell struct {
	ExperimentID int
	Backends     int
	FanIn        int
	Iteration    int // 1-based repetition of the (Backends, FanIn) pair
}

// Prefix is the unique output prefix of this cell's artifacts.
func (c Cell) Prefix(outputPrefix string) string {
	return outputPrefix + ExperimentTag + strconv.Itoa(c.ExperimentID)
}

// Grid enumerates the sweep by nested halving. Backends start at
// maxBackends and halve down to and including minBackends; for each, fan-in
// starts at the backend count and halves while above 1; each pair repeats
// iterations times. Experiment ids run from 1 across the whole grid.
func Grid(minBackends, maxBackends, iterations int) ([]Cell, error) {
	if minBackends < 1 {
		return nil, fmt.Errorf("%w: min backends must be >= 1, got %d", launch.ErrConfiguration, minBackends)
	}
	if maxBackends < minBackends {
		return nil, fmt.Errorf("%w: max backends (%d) must be >= min backends (%d)",
			launch.ErrConfiguration, maxBackends, minBackends)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be >= 1, got %d", launch.ErrConfiguration, iterations)
	}

	var cells []Cell
	id := 1
	for backends := maxBackends; backends >= minBackends; backends /= 2 {
		for fanIn := backends; fanIn > 1; fanIn /= 2 {
			for it := 1; it <= iterations; it++ {
				cells = append(cells, Cell{ExperimentID: id, Backends: backends, FanIn: fanIn, Iteration: it})
				id++
			}
		}
	}
	return cells, nil
}
