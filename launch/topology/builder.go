package topology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// DefaultFileName is the topology file written in the work directory.
const DefaultFileName = ".tdbscan-topology.txt"

// File is a topology description ready to hand to the front-end.
type File struct {
	Path      string
	Generated bool // false when synthesized as a single front-end node
}

// Builder produces topology files, either by running the external generator
// or by writing the trivial single-node topology.
type Builder struct {
	GeneratorPath string // topology generator executable
	Dir           string // directory the topology file is written to
	FileName      string // defaults to DefaultFileName
}

func (b *Builder) outputPath() string {
	name := b.FileName
	if name == "" {
		name = DefaultFileName
	}
	return filepath.Join(b.Dir, name)
}

// Build writes the topology file for spec. treeHostsFile lists the hosts the
// generator may place tree processes on; frontEnd is the host running the root.
//
// A non-zero generator exit yields launch.ErrTopologyGeneration carrying the
// tool's output unmodified.
func (b *Builder) Build(ctx context.Context, treeHostsFile string, spec *Spec, frontEnd string) (*File, error) {
	out := b.outputPath()

	if !spec.NeedsGeneration() {
		if err := WriteSingleNode(out, frontEnd); err != nil {
			return nil, err
		}
		logrus.Infof("Single-node topology written to '%s' (front-end %s)", out, frontEnd)
		return &File{Path: out}, nil
	}

	args := []string{
		"--fehost=" + frontEnd,
		"--hosts=" + treeHostsFile,
		"--topology=" + spec.String(),
		"-o", out,
	}
	// A started generator always runs to completion; ctx only keeps it from
	// starting.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: generator not started: %v", launch.ErrTopologyGeneration, err)
	}
	cmd := exec.Command(b.GeneratorPath, args...)
	logrus.Info("Running the topology generator...")
	logrus.Infof("Running: %s %s", b.GeneratorPath, strings.Join(args, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logrus.Errorf("Topology generator exited with status %d", exitErr.ExitCode())
			return nil, fmt.Errorf("%w: exit status %d:\n%s", launch.ErrTopologyGeneration, exitErr.ExitCode(), output)
		}
		return nil, fmt.Errorf("%w: %v:\n%s", launch.ErrTopologyGeneration, err, output)
	}
	logrus.Info("Topology generator exited with status 0")

	content, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: generator succeeded but %s is unreadable: %v", launch.ErrTopologyGeneration, out, err)
	}
	logrus.Infof("Topology written to '%s':\n%s", out, content)
	return &File{Path: out, Generated: true}, nil
}

// WriteSingleNode writes a topology naming only host, at depth 0.
func WriteSingleNode(path, host string) error {
	if err := os.WriteFile(path, []byte(host+":0 ;\n"), 0644); err != nil {
		return fmt.Errorf("writing single-node topology: %w", err)
	}
	return nil
}
