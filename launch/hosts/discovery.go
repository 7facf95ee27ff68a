// Package hosts discovers the hosts allocated to a job and assigns them to
// front-end, tree and application roles.
package hosts

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// Environment variables naming host files, in lookup order.
const (
	EnvLSFHostFile  = "LSB_DJOB_HOSTFILE"
	EnvPBSHostFile  = "PBS_NODEFILE"
	EnvUserHostFile = "TDBSCAN_HOSTS"
)

// Source is one place a host list can come from.
type Source struct {
	Name   string // scheduler label for logs
	EnvVar string
	// Map rewrites each raw entry; nil keeps it as read.
	Map func(string) (string, error)
}

// DefaultSources returns the supported host sources in precedence order.
func DefaultSources() []Source {
	return []Source{
		{Name: "LSF", EnvVar: EnvLSFHostFile},
		{Name: "PBS", EnvVar: EnvPBSHostFile, Map: PBSNodeName},
		{Name: "User-defined", EnvVar: EnvUserHostFile},
	}
}

// PBSNodeName turns a numeric PBS node id into its nidNNNNN hostname.
func PBSNodeName(raw string) (string, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("PBS node id %q is not numeric: %w", raw, err)
	}
	return fmt.Sprintf("nid%05d", id), nil
}

// Discover reads the host list from the first source whose environment
// variable is set. lookup is normally os.LookupEnv.
func Discover(sources []Source, lookup func(string) (string, bool)) (launch.HostList, error) {
	for _, src := range sources {
		path, ok := lookup(src.EnvVar)
		if !ok || path == "" {
			continue
		}
		logrus.Infof("%s host list detected. Parsing available resources from %s file '%s'...", src.Name, src.EnvVar, path)
		list, err := ReadHostFile(path, src.Map)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", launch.ErrResourceDiscovery, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %s file '%s' lists no hosts", launch.ErrResourceDiscovery, src.EnvVar, path)
		}
		return list, nil
	}

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.EnvVar
	}
	return nil, fmt.Errorf("%w: no known job scheduler detected; set %s to a file listing the available hosts (looked at %s)",
		launch.ErrResourceDiscovery, EnvUserHostFile, strings.Join(names, ", "))
}

// ReadHostFile reads one host per line, skipping blank lines.
func ReadHostFile(path string, mapFn func(string) (string, error)) (launch.HostList, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening host file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var list launch.HostList
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		host := strings.TrimSpace(scanner.Text())
		if host == "" {
			continue
		}
		if mapFn != nil {
			host, err = mapFn(host)
			if err != nil {
				return nil, err
			}
		}
		list = append(list, host)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading host file %s: %w", path, err)
	}
	return list, nil
}

// WriteHostFile writes list one host per line.
func WriteHostFile(path string, list launch.HostList) error {
	if err := os.WriteFile(path, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("writing host file: %w", err)
	}
	return nil
}
