package hosts

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/internal/testutil"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDiscover_LSFTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	lsf := testutil.WriteFile(t, dir, "lsf", "a1\na2\n\na3\n")
	user := testutil.WriteFile(t, dir, "user", "u1\n")

	list, err := Discover(DefaultSources(), envMap(map[string]string{
		EnvLSFHostFile:  lsf,
		EnvUserHostFile: user,
	}))

	require.NoError(t, err)
	assert.Equal(t, launch.HostList{"a1", "a2", "a3"}, list)
}

func TestDiscover_PBSMapsNodeIDs(t *testing.T) {
	pbs := testutil.WriteFile(t, t.TempDir(), "pbs", "12\n 7 \n12345\n")

	list, err := Discover(DefaultSources(), envMap(map[string]string{EnvPBSHostFile: pbs}))

	require.NoError(t, err)
	assert.Equal(t, launch.HostList{"nid00012", "nid00007", "nid12345"}, list)
}

func TestDiscover_PBSNonNumeric_ResourceDiscoveryError(t *testing.T) {
	pbs := testutil.WriteFile(t, t.TempDir(), "pbs", "node-a\n")

	_, err := Discover(DefaultSources(), envMap(map[string]string{EnvPBSHostFile: pbs}))

	assert.ErrorIs(t, err, launch.ErrResourceDiscovery)
}

func TestDiscover_NoSource_ResourceDiscoveryError(t *testing.T) {
	_, err := Discover(DefaultSources(), envMap(nil))

	require.ErrorIs(t, err, launch.ErrResourceDiscovery)
	assert.Contains(t, err.Error(), EnvUserHostFile)
}

func TestDiscover_EmptyFile_ResourceDiscoveryError(t *testing.T) {
	user := testutil.WriteFile(t, t.TempDir(), "user", "\n\n")

	_, err := Discover(DefaultSources(), envMap(map[string]string{EnvUserHostFile: user}))

	assert.ErrorIs(t, err, launch.ErrResourceDiscovery)
}

func TestPartition_Standard(t *testing.T) {
	hosts := launch.HostList{"h0", "h1", "h2", "h3"}

	roles, err := Partition(hosts, launch.Standard, 2, "-ib0")

	require.NoError(t, err)
	assert.Equal(t, "h0-ib0", roles.FrontEnd)
	assert.Equal(t, launch.HostList{"h0-ib0", "h1-ib0", "h2-ib0", "h3-ib0"}, roles.TreeHosts)
	assert.Empty(t, roles.AppHosts)
	// the caller's list is untouched
	assert.Equal(t, launch.HostList{"h0", "h1", "h2", "h3"}, hosts)
}

func TestPartition_StandardNeverProducesAppHosts(t *testing.T) {
	hosts := launch.HostList{"a", "b", "c"}
	for backends := 1; backends <= 8; backends++ {
		roles, err := Partition(hosts, launch.Standard, backends, "")
		require.NoError(t, err)
		assert.Empty(t, roles.AppHosts, "backends=%d", backends)
	}
}

func TestPartition_Attach_SplitsTail(t *testing.T) {
	hosts := launch.HostList{"h0", "h1", "h2", "h3", "h4"}

	roles, err := Partition(hosts, launch.BackendAttach, 3, "-ib0")

	require.NoError(t, err)
	assert.Equal(t, "h0-ib0", roles.FrontEnd)
	assert.Equal(t, launch.HostList{"h0-ib0", "h1-ib0"}, roles.TreeHosts)
	assert.Equal(t, launch.HostList{"h2", "h3", "h4"}, roles.AppHosts)
}

func TestPartition_Attach_CoversEveryHost(t *testing.T) {
	for n := 2; n <= 10; n++ {
		hosts := make(launch.HostList, n)
		for i := range hosts {
			hosts[i] = fmt.Sprintf("h%d", i)
		}
		for backends := 1; backends < n; backends++ {
			roles, err := Partition(hosts, launch.BackendAttach, backends, "")
			require.NoError(t, err)
			assert.Equal(t, n, len(roles.TreeHosts)+len(roles.AppHosts))
			assert.Len(t, roles.AppHosts, backends)
		}
	}
}

func TestPartition_InsufficientResources(t *testing.T) {
	tests := []struct {
		name     string
		hosts    launch.HostList
		mode     launch.RunMode
		backends int
	}{
		{name: "empty standard", hosts: nil, mode: launch.Standard, backends: 1},
		{name: "empty attach", hosts: launch.HostList{}, mode: launch.BackendAttach, backends: 1},
		{name: "attach equal", hosts: launch.HostList{"a", "b"}, mode: launch.BackendAttach, backends: 2},
		{name: "attach fewer", hosts: launch.HostList{"a"}, mode: launch.BackendAttach, backends: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := Partition(tt.hosts, tt.mode, tt.backends, "")
			assert.Nil(t, roles)
			assert.ErrorIs(t, err, launch.ErrInsufficientResources)
		})
	}
}

func TestRoles_Persist(t *testing.T) {
	dir := t.TempDir()
	roles, err := Partition(launch.HostList{"h0", "h1", "h2"}, launch.BackendAttach, 1, "-ib0")
	require.NoError(t, err)

	files, err := roles.Persist(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TreeHostsFileName), files.TreeHosts)
	assert.Equal(t, "h0-ib0\nh1-ib0\n", testutil.ReadFile(t, files.TreeHosts))
	assert.Equal(t, "h2\n", testutil.ReadFile(t, files.AppHosts))

	back, err := ReadHostFile(files.TreeHosts, nil)
	require.NoError(t, err)
	assert.Equal(t, roles.TreeHosts, back)
}

func TestRoles_Persist_StandardHasNoAppFile(t *testing.T) {
	roles, err := Partition(launch.HostList{"h0"}, launch.Standard, 1, "")
	require.NoError(t, err)

	files, err := roles.Persist(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, files.AppHosts)
}
