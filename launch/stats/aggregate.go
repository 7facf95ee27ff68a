package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are per-backend statistics averaged across all backends. Counts
// are floored to integers; timings stay fractional.
type Metrics struct {
	ClusteringPoints int
	NoisePoints      int
	LocalHulls       int

	ExtractionTime     float64
	ClusteringTime     float64
	MergeTime          float64
	ClassificationTime float64
	ReconstructTime    float64
	TotalTime          float64
}

// Summary is everything the aggregator extracts from one run.
type Summary struct {
	Metrics
	GlobalClusters int
	Scores         Scores

	// BackendLines is how many statistics lines were actually present.
	BackendLines int
}

var (
	countFields = []string{FieldClusteringPoints, FieldNoise, FieldLocalHulls}
	timeFields  = []string{
		FieldExtractionTime, FieldClusteringTime, FieldMergeTime,
		FieldClassificationTime, FieldReconstructTime, FieldTotalTime,
	}
)

// ReadRecords reads up to n statistics lines from r. Missing lines are not
// an error; the caller decides how to treat them.
func ReadRecords(r io.Reader, n int) ([]*Record, error) {
	records := make([]*Record, 0, n)
	br := bufio.NewReader(r)
	for len(records) < n {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" || err == nil {
			records = append(records, ParseRecord(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return records, fmt.Errorf("reading statistics: %w", err)
		}
	}
	return records, nil
}

// Average reduces records to their per-field arithmetic mean over
// backendCount backends. Backends without a record, and records lacking a
// field, contribute 0.
func Average(records []*Record, backendCount int) Metrics {
	if backendCount < 1 {
		return Metrics{}
	}
	mean := func(name string) float64 {
		values := make([]float64, backendCount)
		for i := 0; i < backendCount && i < len(records); i++ {
			values[i] = records[i].ValueOrZero(name)
		}
		// Uniform input averages to exactly its value.
		if floats.Min(values) == floats.Max(values) {
			return values[0]
		}
		return stat.Mean(values, nil)
	}
	floor := func(name string) int {
		return int(math.Floor(mean(name)))
	}

	return Metrics{
		ClusteringPoints:   floor(FieldClusteringPoints),
		NoisePoints:        floor(FieldNoise),
		LocalHulls:         floor(FieldLocalHulls),
		ExtractionTime:     mean(FieldExtractionTime),
		ClusteringTime:     mean(FieldClusteringTime),
		MergeTime:          mean(FieldMergeTime),
		ClassificationTime: mean(FieldClassificationTime),
		ReconstructTime:    mean(FieldReconstructTime),
		TotalTime:          mean(FieldTotalTime),
	}
}

// GlobalClusterCount reads the header of the cluster metadata table: every
// column after the two leading fixed ones is a cluster.
func GlobalClusterCount(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening cluster metadata: %w", err)
	}
	defer func() { _ = file.Close() }()

	header, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("reading cluster metadata header: %w", err)
	}
	header = strings.TrimRight(header, "\r\n")
	if header == "" {
		return 0, nil
	}
	return max(len(strings.Split(header, ","))-2, 0), nil
}

// Aggregator turns run artifacts into a Summary.
type Aggregator struct {
	// Scorer computes comparison scores; nil skips comparison.
	Scorer *Scorer
}

// Aggregate reads backendCount lines from the statistics artifact, averages
// the recognized fields, counts global clusters and, when referenceTable is
// set, scores the final table against it.
//
// Only an unreadable statistics file is an error. Absent or corrupt fields
// count as 0, a missing metadata table yields 0 clusters and comparison
// failures yield 0 scores.
func (a *Aggregator) Aggregate(ctx context.Context, art Artifacts, backendCount int, referenceTable string) (*Summary, error) {
	if backendCount < 1 {
		return nil, fmt.Errorf("backend count must be >= 1, got %d", backendCount)
	}

	file, err := os.Open(art.StatsFile())
	if err != nil {
		return nil, fmt.Errorf("opening statistics: %w", err)
	}
	records, err := ReadRecords(file, backendCount)
	_ = file.Close()
	if err != nil {
		return nil, err
	}
	if len(records) < backendCount {
		logrus.Warnf("Statistics file '%s' has %d lines, expected %d; missing backends count as 0",
			art.StatsFile(), len(records), backendCount)
	}
	for _, rec := range records {
		for _, name := range rec.Malformed {
			if isRecognized(name) {
				logrus.Warnf("Backend %s: field %q is not numeric, counting it as 0", rec.NodeID, name)
			}
		}
	}

	summary := &Summary{Metrics: Average(records, backendCount), BackendLines: len(records)}

	summary.GlobalClusters, err = GlobalClusterCount(art.ClustersInfo())
	if err != nil {
		logrus.Warnf("Global cluster count unavailable: %v", err)
	}

	if referenceTable != "" && a.Scorer != nil {
		summary.Scores = a.Scorer.Score(ctx, art.FinalTable(), referenceTable)
	}
	return summary, nil
}

func isRecognized(name string) bool {
	return slices.Contains(countFields, name) || slices.Contains(timeFields, name)
}
