package experiment

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/internal/testutil"
	"github.com/tree-dbscan/tdbscan-launcher/launch/proc"
	"github.com/tree-dbscan/tdbscan-launcher/launch/sweep"
)

// generatorScript writes "<topology>" into the file given after -o and
// records its arguments. It fails for any topology matching failPattern.
func generatorScript(t *testing.T, dir, failPattern string) string {
	t.Helper()
	body := `echo "$@" >> "$0.log"
topo=""; out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --topology=*) topo="${1#--topology=}" ;;
    -o) shift; out="$1" ;;
  esac
  shift
done`
	if failPattern != "" {
		body += `
case "$topo" in *` + failPattern + `*) echo "cannot build $topo" >&2; exit 3 ;; esac`
	}
	body += `
echo "$topo" > "$out"`
	return testutil.Script(t, dir, "topgen", body)
}

// frontEndScript emulates the engine: it writes the statistics and cluster
// metadata artifacts for the prefix given by -o and logs each invocation.
func frontEndScript(t *testing.T, dir string, exitCode string) string {
	t.Helper()
	return testutil.Script(t, dir, "fe", `trace=""
while [ $# -gt 0 ]; do
  case "$1" in -o) shift; trace="$1" ;; esac
  shift
done
p="${trace%.prv}"
echo "$p" >> "$0.log"
echo "topology=$MRNAPP_TOPOLOGY backends=$MRNAPP_NUM_BACKENDS timeout=$MRNAPP_STARTUP_TIMEOUT conn=$MRNAPP_BE_CONNECTIONS"
i=0
while [ $i -lt "$MRNAPP_NUM_BACKENDS" ]; do
  printf '%s,Clustering points=100\\nNoise=10\\nHulls=2,Total time=%s\n' "$i" "$((i + 1))" >> "$p.MRNETSTATS.data"
  i=$((i + 1))
done
echo "Cluster Name,NOISE,Cluster 1,Cluster 2" > "$p.FINAL.clusters_info.csv"
exit `+exitCode)
}

func baseConfig(dir string) Config {
	return Config{
		Mode:           launch.Standard,
		Hosts:          launch.HostList{"n0", "n1", "n2", "n3"},
		HostSuffix:     "-ib",
		WorkDir:        dir,
		StartupTimeout: 30 * time.Second,
		Tasks:          16,
	}
}

func TestRun_Standard_FullPipeline(t *testing.T) {
	// GIVEN a generator and a front-end that leaves statistics for 4 backends
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Generator = generatorScript(t, dir, "")
	cfg.FrontEnd = launch.Command{Path: frontEndScript(t, dir, "0"), Args: []string{"-d", "cfg.xml", "-i", "in.prv"}}
	var out bytes.Buffer
	cfg.Output = &out

	// WHEN experiment (4 backends, fan-in 2) runs
	prefix := filepath.Join(dir, "run_experiment_1")
	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 4, FanIn: 2, Prefix: prefix})

	// THEN the generator got the suffix-qualified front-end and the topology spec
	require.NoError(t, err)
	genArgs := testutil.ReadFile(t, cfg.Generator+".log")
	assert.Contains(t, genArgs, "--fehost=n0-ib")
	assert.Contains(t, genArgs, "--topology=g:2:2x2")
	assert.Equal(t, "n0-ib\nn1-ib\nn2-ib\nn3-ib\n", testutil.ReadFile(t, filepath.Join(dir, ".tdbscan-resources.txt")))

	// AND the front-end saw the topology through its environment
	topo := filepath.Join(dir, ".tdbscan-topology.txt")
	assert.Contains(t, out.String(), "topology="+topo+" backends=4 timeout=30 conn=\n")
	assert.Equal(t, prefix+"\n", testutil.ReadFile(t, cfg.FrontEnd.Path+".log"))

	// AND the statistics were averaged
	require.NotNil(t, res.Summary)
	assert.Equal(t, 100, res.Summary.ClusteringPoints)
	assert.Equal(t, 10, res.Summary.NoisePoints)
	assert.Equal(t, 2, res.Summary.LocalHulls)
	assert.Equal(t, 2.5, res.Summary.TotalTime)
	assert.Equal(t, 2, res.Summary.GlobalClusters)
	assert.Equal(t, 8, res.Spec.TotalResources())
	assert.True(t, res.Status.OK())
}

func TestRun_TopologyFailure_NoEngineLaunched(t *testing.T) {
	// GIVEN a generator that always fails
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Generator = generatorScript(t, dir, "g")
	cfg.FrontEnd = launch.Command{Path: frontEndScript(t, dir, "0")}

	// WHEN an experiment runs
	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 4, FanIn: 2, Prefix: filepath.Join(dir, "p")})

	// THEN the error carries the tool's output and the front-end never ran
	require.ErrorIs(t, err, launch.ErrTopologyGeneration)
	assert.Contains(t, err.Error(), "cannot build g:2:2x2")
	assert.Nil(t, res.Status)
	assert.Nil(t, res.Summary)
	_, statErr := os.Stat(cfg.FrontEnd.Path + ".log")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_EngineFailure_StillAggregates(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Generator = generatorScript(t, dir, "")
	cfg.FrontEnd = launch.Command{Path: frontEndScript(t, dir, "5")}
	cfg.Output = &bytes.Buffer{}

	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 2, FanIn: 2, Prefix: filepath.Join(dir, "p")})

	require.ErrorIs(t, err, launch.ErrEngineProcess)
	assert.Equal(t, 5, res.Status.ExitCode())
	require.NotNil(t, res.Summary, "artifacts left by the failed run are aggregated")
	assert.Equal(t, 1.5, res.Summary.TotalTime)
}

func TestRun_EngineFailure_NoArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Generator = generatorScript(t, dir, "")
	cfg.FrontEnd = launch.Command{Path: testutil.Script(t, dir, "fe", `exit 9`)}
	cfg.Output = &bytes.Buffer{}

	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 2, FanIn: 2, Prefix: filepath.Join(dir, "p")})

	require.ErrorIs(t, err, launch.ErrEngineProcess)
	assert.Nil(t, res.Summary)
}

func TestRun_InvalidPlan_NothingWritten(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)

	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 12, FanIn: 3, Prefix: filepath.Join(dir, "p")})

	require.ErrorIs(t, err, launch.ErrConfiguration)
	assert.Nil(t, res.Spec)
	_, statErr := os.Stat(filepath.Join(dir, ".tdbscan-resources.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_Attach_RootOnly_SingleNodeTopologyAndBackendGroup(t *testing.T) {
	// GIVEN 4 hosts, 2 of them for attached backends, and a root-only tree
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Mode = launch.BackendAttach
	cfg.Generator = filepath.Join(dir, "must-not-run")
	cfg.FrontEnd = launch.Command{Path: frontEndScript(t, dir, "0")}
	cfg.Backend = launch.Command{Path: testutil.Script(t, dir, "be", `echo "be conn=$MRNAPP_BE_CONNECTIONS"`)}
	cfg.Launcher = []string{testutil.Script(t, dir, "par", `np="$1"; hf="$2"; shift 2
echo "np=$np hosts=$(tr '\n' ' ' < "$hf")"
"$@"`), proc.PlaceholderNumProcs, proc.PlaceholderHostFile}
	cfg.AttachDelay = 50 * time.Millisecond
	var out bytes.Buffer
	cfg.Output = &out

	// WHEN experiment (2 backends, fan-in 2) runs
	res, err := NewRunner(cfg).Run(context.Background(), Params{Backends: 2, FanIn: 2, Prefix: filepath.Join(dir, "p")})

	// THEN the topology names only the front-end and the group ran on the last hosts
	require.NoError(t, err)
	assert.Equal(t, "n0-ib:0 ;\n", testutil.ReadFile(t, filepath.Join(dir, ".tdbscan-topology.txt")))
	conn := filepath.Join(dir, ConnectionsFileName)
	text := out.String()
	assert.Contains(t, text, "[BE] np=2 hosts=n2 n3 \n")
	assert.Contains(t, text, "[BE] be conn="+conn+"\n")
	assert.Contains(t, text, "conn="+conn+"\n")
	require.Len(t, res.Status.Results, 2)
	assert.Equal(t, 3, res.Spec.TotalResources())
}

func TestSweepFunc_FailingCellDoesNotStopSweep(t *testing.T) {
	// GIVEN a generator that fails only for multi-level trees
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Generator = generatorScript(t, dir, "x")
	cfg.FrontEnd = launch.Command{Path: frontEndScript(t, dir, "0")}
	cfg.Output = &bytes.Buffer{}
	runner := NewRunner(cfg)
	prefix := filepath.Join(dir, "sweep")

	// WHEN sweeping 2..4 backends once: (4,4) (4,2) (2,2)
	table, err := (&sweep.Controller{Run: runner.SweepFunc(prefix)}).Sweep(context.Background(), 2, 4, 1)

	// THEN the failing cell launched nothing and the next cell still ran
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.True(t, table.Rows[0].OK())
	assert.False(t, table.Rows[1].OK())
	assert.Contains(t, table.Rows[1].Error, "cannot build g:2:2x2")
	assert.Equal(t, 8, table.Rows[1].TotalResources)
	assert.True(t, table.Rows[2].OK())
	assert.Equal(t, 16, table.Rows[2].Tasks)

	launched := strings.Fields(testutil.ReadFile(t, cfg.FrontEnd.Path+".log"))
	assert.Equal(t, []string{prefix + "_experiment_1", prefix + "_experiment_3"}, launched)
}
