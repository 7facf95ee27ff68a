// Package stats reduces the artifacts of a finished run into one summary:
// per-backend statistics averaged across backends, the global cluster count,
// and optional comparison scores against a reference clustering.
package stats

import (
	"math"
	"strconv"
	"strings"
)

// Field names the engine writes into the statistics artifact.
const (
	FieldClusteringPoints   = "Clustering points"
	FieldNoise              = "Noise"
	FieldLocalHulls         = "Hulls"
	FieldGlobalHulls        = "Sum hulls"
	FieldExtractionTime     = "Extraction time"
	FieldClusteringTime     = "Clustering time"
	FieldMergeTime          = "Merge time"
	FieldClassificationTime = "Classification time"
	FieldReconstructTime    = "Reconstruct time"
	FieldTotalTime          = "Total time"
)

// escapedNewline is how the engine embeds line breaks inside one record.
const escapedNewline = `\n`

// Record is the parsed statistics line of one backend.
type Record struct {
	NodeID string
	values map[string]float64

	// Malformed lists fields whose value did not parse as a number.
	Malformed []string
}

// Value returns the named field and whether it was present with a numeric
// value.
func (r *Record) Value(name string) (float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// ValueOrZero returns the named field, or 0 when absent or malformed.
func (r *Record) ValueOrZero(name string) float64 {
	return r.values[name]
}

// Len is the number of numeric fields found.
func (r *Record) Len() int {
	return len(r.values)
}

// ParseRecord parses one statistics line. Fields are separated by commas,
// escaped newlines or real newlines; each is "name=value". A leading field
// without "=" is taken as the node id. Anything unparsable is skipped, never
// reported as an error.
func ParseRecord(line string) *Record {
	rec := &Record{values: make(map[string]float64)}

	normalized := strings.ReplaceAll(line, escapedNewline, ",")
	normalized = strings.ReplaceAll(normalized, "\n", ",")
	for i, field := range strings.Split(normalized, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, raw, found := strings.Cut(field, "=")
		if !found {
			if i == 0 {
				rec.NodeID = field
			}
			continue
		}
		name = strings.TrimSpace(name)
		v, ok := parseNumber(raw)
		if !ok {
			rec.Malformed = append(rec.Malformed, name)
			continue
		}
		rec.values[name] = v
	}
	return rec
}

// parseNumber accepts a bare finite number or one followed by an annotation,
// as in "1.25 (Avg=0.3)".
func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		head, _, found := strings.Cut(raw, " ")
		if !found {
			return 0, false
		}
		if v, err = strconv.ParseFloat(head, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
