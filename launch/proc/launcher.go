package proc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// Placeholders expanded in a parallel launcher template.
const (
	PlaceholderNumProcs = "{np}"       // degree of parallelism
	PlaceholderHostFile = "{hostfile}" // path of the application host file
	PlaceholderHosts    = "{hosts}"    // comma-separated application hosts
)

// DefaultLauncher starts one backend per application host with mpirun.
var DefaultLauncher = []string{"mpirun", "-np", PlaceholderNumProcs, "--hostfile", PlaceholderHostFile}

// BackendGroup describes the detached backends of an attach-mode run.
type BackendGroup struct {
	Launcher []string        // parallel launcher argv template
	Backend  launch.Command  // one backend instance
	Hosts    launch.HostList // application hosts
	HostFile string          // persisted copy of Hosts
	Count    int             // degree of parallelism
}

// Command expands the launcher template into the single command that starts
// the whole group.
func (g *BackendGroup) Command() (launch.Command, error) {
	if len(g.Launcher) == 0 {
		return launch.Command{}, fmt.Errorf("%w: parallel launcher template is empty", launch.ErrConfiguration)
	}
	if g.Count < 1 {
		return launch.Command{}, fmt.Errorf("%w: backend group needs at least one process, got %d", launch.ErrConfiguration, g.Count)
	}

	r := strings.NewReplacer(
		PlaceholderNumProcs, strconv.Itoa(g.Count),
		PlaceholderHostFile, g.HostFile,
		PlaceholderHosts, strings.Join(g.Hosts, ","),
	)
	argv := make([]string, 0, len(g.Launcher)+len(g.Backend.Args)+1)
	for _, a := range g.Launcher {
		argv = append(argv, r.Replace(a))
	}
	argv = append(argv, g.Backend.Path)
	argv = append(argv, g.Backend.Args...)

	name := g.Backend.Name
	if name == "" {
		name = "BE"
	}
	return launch.Command{
		Name: name,
		Path: argv[0],
		Args: argv[1:],
		Env:  g.Backend.Env,
		Dir:  g.Backend.Dir,
	}, nil
}
