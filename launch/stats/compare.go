package stats

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// DefaultSortColumn is the 1-based result-table column both tables are
// sorted on before comparison.
const DefaultSortColumn = 5

// Scores compare a run's clustering with a reference one.
type Scores struct {
	MirkinDistance float64
	SequenceScore  float64
}

// Scorer runs the external comparison tools. Any failure degrades the
// affected score to 0.
type Scorer struct {
	DistanceTool string // invoked as "<tool> -1 <final-sorted> -2 <reference-sorted>"
	SequenceTool string // invoked as "<tool> <final>"
	SortColumn   int    // 1-based; defaults to DefaultSortColumn

	// WorkDir receives the reference table's sorted copy, named after the
	// reference's base name; empty means the current directory. The final
	// table's copy is written next to the final table.
	WorkDir string
}

// ReferenceSortedCopy is where the sorted copy of referenceTable is written.
func (s *Scorer) ReferenceSortedCopy(referenceTable string) string {
	return filepath.Join(s.WorkDir, SortedCopy(filepath.Base(referenceTable)))
}

// Score computes both scores for finalTable against referenceTable.
func (s *Scorer) Score(ctx context.Context, finalTable, referenceTable string) Scores {
	var scores Scores
	var err error

	scores.MirkinDistance, err = s.distance(ctx, finalTable, referenceTable)
	if err != nil {
		logrus.Warnf("Mirkin distance set to 0: %v", err)
	}
	scores.SequenceScore, err = s.sequence(ctx, finalTable)
	if err != nil {
		logrus.Warnf("Sequence score set to 0: %v", err)
	}
	return scores
}

func (s *Scorer) distance(ctx context.Context, finalTable, referenceTable string) (float64, error) {
	if s.DistanceTool == "" {
		return 0, fmt.Errorf("%w: no distance tool configured", launch.ErrComparisonUnavailable)
	}
	col := s.SortColumn
	if col < 1 {
		col = DefaultSortColumn
	}

	finalSorted, refSorted := SortedCopy(finalTable), s.ReferenceSortedCopy(referenceTable)
	if err := SortTable(finalTable, finalSorted, col); err != nil {
		return 0, fmt.Errorf("%w: %v", launch.ErrComparisonUnavailable, err)
	}
	if err := SortTable(referenceTable, refSorted, col); err != nil {
		return 0, fmt.Errorf("%w: %v", launch.ErrComparisonUnavailable, err)
	}
	return runNumericTool(ctx, s.DistanceTool, "-1", finalSorted, "-2", refSorted)
}

func (s *Scorer) sequence(ctx context.Context, finalTable string) (float64, error) {
	if s.SequenceTool == "" {
		return 0, fmt.Errorf("%w: no sequence-score tool configured", launch.ErrComparisonUnavailable)
	}
	return runNumericTool(ctx, s.SequenceTool, finalTable)
}

// runNumericTool runs tool and parses its standard output as one number.
// An ended ctx keeps the tool from starting; a started tool runs to
// completion.
func runNumericTool(ctx context.Context, tool string, args ...string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s not started: %v", launch.ErrComparisonUnavailable, tool, err)
	}
	cmd := exec.Command(tool, args...)
	logrus.Infof("Running: %s %s", tool, strings.Join(args, " "))

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", launch.ErrComparisonUnavailable, tool, err)
	}
	text := strings.TrimSpace(string(out))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s printed %q, not a number", launch.ErrComparisonUnavailable, tool, text)
	}
	return v, nil
}

// SortTable writes a copy of the CSV at src to dst with its rows ordered by
// the numeric value of the given 1-based column. Rows whose key is not a
// number (the header) sort first. Equal keys are ordered by the text from
// the key column to the end of the line, then by the whole line, so the
// output does not depend on the input row order.
func SortTable(src, dst string, column int) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	type row struct {
		line    string
		tail    string // from the key column to the end of the line
		key     float64
		numeric bool
	}
	var rows []row
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		r := row{line: line}
		fields := strings.Split(line, ",")
		if column <= len(fields) {
			r.tail = strings.Join(fields[column-1:], ",")
			if v, err := strconv.ParseFloat(strings.TrimSpace(fields[column-1]), 64); err == nil {
				r.key, r.numeric = v, true
			}
		}
		rows = append(rows, r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	slices.SortFunc(rows, func(a, b row) int {
		switch {
		case a.numeric != b.numeric:
			if a.numeric {
				return 1
			}
			return -1
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		if c := strings.Compare(a.tail, b.tail); c != 0 {
			return c
		}
		return strings.Compare(a.line, b.line)
	})

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	w := bufio.NewWriter(out)
	for _, r := range rows {
		_, _ = w.WriteString(r.line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return out.Close()
}
