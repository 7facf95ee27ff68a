package topology

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/internal/testutil"
)

func TestBuild_InvokesGeneratorWithSpec(t *testing.T) {
	// GIVEN a generator that echoes its arguments into the output file
	dir := t.TempDir()
	gen := testutil.Script(t, dir, "topgen", `
for a in "$@"; do
  case "$a" in
    -o) next=out ;;
    *) if [ "$next" = out ]; then out="$a"; next=; else echo "$a" >> "$0.args"; fi ;;
  esac
done
echo "fe:0 => cp:1 ;" > "$out"
`)
	hostsFile := testutil.WriteFile(t, dir, "hosts.txt", "n1\nn2\n")
	spec, err := Plan(64, 4, launch.Standard)
	require.NoError(t, err)

	// WHEN the topology is built
	b := &Builder{GeneratorPath: gen, Dir: dir}
	file, err := b.Build(context.Background(), hostsFile, spec, "n1-ib0")

	// THEN the generator saw the front-end, host file and spec, and its file is returned
	require.NoError(t, err)
	assert.True(t, file.Generated)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), file.Path)
	assert.Equal(t, "fe:0 => cp:1 ;\n", testutil.ReadFile(t, file.Path))
	args := testutil.ReadFile(t, gen+".args")
	assert.Contains(t, args, "--fehost=n1-ib0")
	assert.Contains(t, args, "--hosts="+hostsFile)
	assert.Contains(t, args, "--topology=g:4:4x4:16x4")
}

func TestBuild_GeneratorFails_SurfacesOutput(t *testing.T) {
	// GIVEN a generator that complains and exits 3
	dir := t.TempDir()
	gen := testutil.Script(t, dir, "topgen", `echo "bad topology spec" >&2; exit 3`)
	spec, err := Plan(8, 2, launch.Standard)
	require.NoError(t, err)

	// WHEN the topology is built
	b := &Builder{GeneratorPath: gen, Dir: dir}
	file, err := b.Build(context.Background(), "hosts.txt", spec, "fe")

	// THEN the failure is classified and carries the diagnostic verbatim
	assert.Nil(t, file)
	require.ErrorIs(t, err, launch.ErrTopologyGeneration)
	assert.Contains(t, err.Error(), "bad topology spec")
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestBuild_MissingGenerator_TopologyGenerationFailed(t *testing.T) {
	spec, err := Plan(8, 2, launch.Standard)
	require.NoError(t, err)

	b := &Builder{GeneratorPath: filepath.Join(t.TempDir(), "does-not-exist"), Dir: t.TempDir()}
	_, err = b.Build(context.Background(), "hosts.txt", spec, "fe")

	assert.ErrorIs(t, err, launch.ErrTopologyGeneration)
}

func TestBuild_EndedContext_GeneratorNotStarted(t *testing.T) {
	// GIVEN a generator that leaves a marker when it runs
	dir := t.TempDir()
	gen := testutil.Script(t, dir, "topgen", `touch "$0.ran"`)
	spec, err := Plan(8, 2, launch.Standard)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// WHEN the topology is built after the context ended
	b := &Builder{GeneratorPath: gen, Dir: dir}
	file, err := b.Build(ctx, "hosts.txt", spec, "fe")

	// THEN nothing was launched and the failure is classified
	assert.Nil(t, file)
	require.ErrorIs(t, err, launch.ErrTopologyGeneration)
	assert.NoFileExists(t, gen+".ran")
}

func TestBuild_ContextEndsWhileRunning_GeneratorCompletes(t *testing.T) {
	// GIVEN a slow generator
	dir := t.TempDir()
	gen := testutil.Script(t, dir, "topgen", `
while [ $# -gt 0 ]; do
  case "$1" in -o) shift; out="$1" ;; esac
  shift
done
sleep 0.3
echo "fe:0 => cp:1 ;" > "$out"`)
	spec, err := Plan(8, 2, launch.Standard)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// WHEN the context ends while the generator runs
	b := &Builder{GeneratorPath: gen, Dir: dir}
	file, err := b.Build(ctx, "hosts.txt", spec, "fe")

	// THEN the generator was not killed and its topology is returned
	require.NoError(t, err)
	assert.Equal(t, "fe:0 => cp:1 ;\n", testutil.ReadFile(t, file.Path))
}

func TestBuild_NoGenerationNeeded_SynthesizesSingleNode(t *testing.T) {
	// GIVEN an attach-mode root-only tree and a generator that must not run
	dir := t.TempDir()
	gen := testutil.Script(t, dir, "topgen", `exit 1`)
	spec, err := Plan(4, 4, launch.BackendAttach)
	require.NoError(t, err)

	// WHEN the topology is built
	b := &Builder{GeneratorPath: gen, Dir: dir, FileName: "topo.txt"}
	file, err := b.Build(context.Background(), "hosts.txt", spec, "fe-ib0")

	// THEN a one-line topology names only the front-end at depth 0
	require.NoError(t, err)
	assert.False(t, file.Generated)
	assert.Equal(t, "fe-ib0:0 ;\n", testutil.ReadFile(t, file.Path))
}
