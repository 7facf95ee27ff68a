package launch

import (
	"fmt"
	"strings"
)

// HostList is an ordered list of hostnames. Index 0 is the front-end host.
// Treat it as immutable once read.
type HostList []string

// Qualify returns a copy of the list with suffix appended to every host.
func (h HostList) Qualify(suffix string) HostList {
	out := make(HostList, len(h))
	for i, host := range h {
		out[i] = host + suffix
	}
	return out
}

// String renders the list one host per line, the format host files use.
func (h HostList) String() string {
	if len(h) == 0 {
		return ""
	}
	return strings.Join(h, "\n") + "\n"
}

// RunMode selects how backend processes join the overlay tree.
type RunMode int

const (
	// Standard: every allocated host is part of the tree and the engine
	// spawns its own backends.
	Standard RunMode = iota
	// BackendAttach: the last NumBackends hosts run independently launched
	// backends that attach to a pre-built tree on the remaining hosts.
	BackendAttach
)

var runModeNames = map[RunMode]string{
	Standard:      "standard",
	BackendAttach: "attach",
}

func (m RunMode) String() string {
	if name, ok := runModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RunMode(%d)", int(m))
}

// ParseRunMode maps "standard" or "attach" to a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	for mode, name := range runModeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}
	return Standard, fmt.Errorf("%w: unknown run mode %q; valid: standard, attach", ErrConfiguration, s)
}

// Command describes an external process to launch.
type Command struct {
	Name string   // label used when relaying output and reporting exit status
	Path string   // executable
	Args []string // arguments, not including Path
	Env  []string // extra KEY=VALUE pairs appended to the parent environment
	Dir  string   // working directory; empty means the current one
}

// String renders the command line the way it is logged before launch.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}
