package stats

import "strings"

// Artifacts names the files a run writes under its output prefix.
type Artifacts struct {
	Prefix string
}

// StatsFile holds one statistics line per backend.
func (a Artifacts) StatsFile() string { return a.Prefix + ".MRNETSTATS.data" }

// FinalTable is the final cluster assignment table.
func (a Artifacts) FinalTable() string { return a.Prefix + ".FINAL.DATA.csv" }

// ClustersInfo is the cluster metadata table.
func (a Artifacts) ClustersInfo() string { return a.Prefix + ".FINAL.clusters_info.csv" }

// TraceFile is the name the front-end is asked to write its output trace to.
func (a Artifacts) TraceFile() string { return a.Prefix + ".prv" }

// ReferenceTable maps a reference trace to the result table produced by the
// clustering that generated it: the 4-character extension is replaced by
// ".DATA.csv".
func ReferenceTable(referenceTrace string) string {
	if len(referenceTrace) > 4 && strings.HasPrefix(referenceTrace[len(referenceTrace)-4:], ".") {
		return referenceTrace[:len(referenceTrace)-4] + ".DATA.csv"
	}
	return referenceTrace + ".DATA.csv"
}

// SortedCopy is where the key-sorted copy of table is written.
func SortedCopy(table string) string {
	return strings.TrimSuffix(table, ".csv") + ".sorted.csv"
}
