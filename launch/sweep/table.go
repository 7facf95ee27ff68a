package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tree-dbscan/tdbscan-launcher/launch/stats"
)

// Row statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Header is the result table's column order.
var Header = []string{
	"Experiment", "NumTasks", "FanIn", "NumBackends", "TotalResources",
	"NumPoints", "NoisePoints", "LocalHulls", "GlobalHulls",
	"ExtractionTime", "LocalClusteringTime", "MergeTime", "ClassificationTime",
	"ReconstructTime", "TotalTime", "MirkinDistance", "SequenceScore",
	"Status", "Error",
}

// Measurement is what one run reports back to the controller.
type Measurement struct {
	Tasks          int
	TotalResources int

	// Summary is nil when the run produced nothing to aggregate.
	Summary *stats.Summary
}

// Row is one line of the result table. Immutable once appended.
type Row struct {
	Cell
	Tasks          int
	TotalResources int
	stats.Metrics
	GlobalClusters int
	Scores         stats.Scores

	Status string
	Error  string
}

// NewRow combines a cell with whatever its run measured. A non-nil err marks
// the row failed; fields the run did not reach stay zero.
func NewRow(cell Cell, m *Measurement, err error) Row {
	row := Row{Cell: cell, Status: StatusOK}
	if m != nil {
		row.Tasks = m.Tasks
		row.TotalResources = m.TotalResources
		if m.Summary != nil {
			row.Metrics = m.Summary.Metrics
			row.GlobalClusters = m.Summary.GlobalClusters
			row.Scores = m.Summary.Scores
		}
	}
	if err != nil {
		row.Status = StatusFailed
		row.Error = err.Error()
	}
	return row
}

// OK reports whether the run completed without error.
func (r Row) OK() bool {
	return r.Status == StatusOK
}

func (r Row) record() []string {
	return []string{
		strconv.Itoa(r.ExperimentID),
		strconv.Itoa(r.Tasks),
		strconv.Itoa(r.FanIn),
		strconv.Itoa(r.Backends),
		strconv.Itoa(r.TotalResources),
		strconv.Itoa(r.ClusteringPoints),
		strconv.Itoa(r.NoisePoints),
		strconv.Itoa(r.LocalHulls),
		strconv.Itoa(r.GlobalClusters),
		formatFloat(r.ExtractionTime),
		formatFloat(r.ClusteringTime),
		formatFloat(r.MergeTime),
		formatFloat(r.ClassificationTime),
		formatFloat(r.ReconstructTime),
		formatFloat(r.TotalTime),
		formatFloat(r.Scores.MirkinDistance),
		formatFloat(r.Scores.SequenceScore),
		r.Status,
		r.Error,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Table accumulates rows in experiment order.
type Table struct {
	Rows []Row
}

// Append adds a row.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Failed counts rows whose run failed.
func (t *Table) Failed() int {
	n := 0
	for _, r := range t.Rows {
		if !r.OK() {
			n++
		}
	}
	return n
}

// WriteCSV writes the header and every row to w.
func (t *Table) WriteCSV(w io.Writer) error {
	cw, err := NewWriter(w)
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Writer streams rows to a CSV destination, flushing after each so that an
// interrupted sweep leaves every completed row on disk.
type Writer struct {
	csv *csv.Writer
}

// NewWriter writes the header to w and returns a Writer for the rows.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("writing result header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("writing result header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// Write appends one row and flushes it.
func (w *Writer) Write(row Row) error {
	if err := w.csv.Write(row.record()); err != nil {
		return fmt.Errorf("writing result row %d: %w", row.ExperimentID, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("writing result row %d: %w", row.ExperimentID, err)
	}
	return nil
}
