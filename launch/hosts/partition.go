package hosts

import (
	"fmt"
	"path/filepath"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// Host file names written by Persist.
const (
	TreeHostsFileName = ".tdbscan-resources.txt"
	AppHostsFileName  = ".tdbscan-be-resources.txt"
)

// Roles is the outcome of partitioning a host list.
type Roles struct {
	FrontEnd  string          // hosts[0], suffix-qualified
	TreeHosts launch.HostList // suffix-qualified; the topology generator places tree processes here
	AppHosts  launch.HostList // unqualified; empty unless in attach mode
}

// Files are the persisted host lists of a Roles value.
type Files struct {
	TreeHosts string
	AppHosts  string // empty when there are no application hosts
}

// Partition splits hosts into roles. suffix is the interconnect qualifier
// appended to tree host names (e.g. "-ib0"); it may be empty.
//
// In Standard mode every host is a tree host. In BackendAttach mode the last
// backendCount hosts are reserved for the backend processes and must leave at
// least one host for the tree.
func Partition(hosts launch.HostList, mode launch.RunMode, backendCount int, suffix string) (*Roles, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: host list is empty", launch.ErrInsufficientResources)
	}

	roles := &Roles{FrontEnd: hosts[0] + suffix}
	switch mode {
	case launch.Standard:
		roles.TreeHosts = hosts.Qualify(suffix)
	case launch.BackendAttach:
		if backendCount < 1 {
			return nil, fmt.Errorf("%w: backend count must be >= 1, got %d", launch.ErrConfiguration, backendCount)
		}
		if len(hosts) <= backendCount {
			return nil, fmt.Errorf("%w: %d hosts cannot hold a tree plus %d attached backends",
				launch.ErrInsufficientResources, len(hosts), backendCount)
		}
		split := len(hosts) - backendCount
		roles.TreeHosts = hosts[:split].Qualify(suffix)
		roles.AppHosts = append(launch.HostList(nil), hosts[split:]...)
	default:
		return nil, fmt.Errorf("%w: unsupported run mode %v", launch.ErrConfiguration, mode)
	}
	return roles, nil
}

// Persist writes the tree and application host lists into dir.
func (r *Roles) Persist(dir string) (*Files, error) {
	files := &Files{TreeHosts: filepath.Join(dir, TreeHostsFileName)}
	if err := WriteHostFile(files.TreeHosts, r.TreeHosts); err != nil {
		return nil, err
	}
	if len(r.AppHosts) == 0 {
		return files, nil
	}
	files.AppHosts = filepath.Join(dir, AppHostsFileName)
	if err := WriteHostFile(files.AppHosts, r.AppHosts); err != nil {
		return nil, err
	}
	return files, nil
}
