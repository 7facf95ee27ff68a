package sweep

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// RunFunc executes the full pipeline for one cell. It may return a partial
// Measurement together with an error; both end up in the row.
type RunFunc func(ctx context.Context, cell Cell) (*Measurement, error)

// Controller runs a grid one cell at a time.
type Controller struct {
	Run RunFunc

	// Out, when set, receives every row as soon as it is produced.
	Out *Writer
}

// Sweep runs every cell of Grid(minBackends, maxBackends, iterations).
//
// A failing cell is recorded as a failed row and the sweep moves on. Only a
// grid configuration error, a resource discovery error, a failure writing to
// Out or the end of ctx stop the sweep early; the rows collected so far are
// returned with the error.
func (c *Controller) Sweep(ctx context.Context, minBackends, maxBackends, iterations int) (*Table, error) {
	cells, err := Grid(minBackends, maxBackends, iterations)
	if err != nil {
		return nil, err
	}
	return c.RunCells(ctx, cells)
}

// RunCells runs the given cells in order.
func (c *Controller) RunCells(ctx context.Context, cells []Cell) (*Table, error) {
	table := &Table{}
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("Sweep stopped before experiment %d: %v", cell.ExperimentID, err)
			return table, err
		}

		logrus.Infof("Experiment %d: NumBackends=%d FanIn=%d iteration %d",
			cell.ExperimentID, cell.Backends, cell.FanIn, cell.Iteration)
		m, runErr := c.Run(ctx, cell)
		row := NewRow(cell, m, runErr)
		if runErr != nil {
			logrus.Errorf("Experiment %d failed: %v", cell.ExperimentID, runErr)
		}

		table.Append(row)
		if c.Out != nil {
			if err := c.Out.Write(row); err != nil {
				return table, err
			}
		}
		if errors.Is(runErr, launch.ErrResourceDiscovery) {
			return table, runErr
		}
	}
	return table, nil
}
