// Package experiment runs one clustering experiment end to end: plan the
// tree, partition the hosts, build the topology file, launch the engine and
// aggregate its statistics.
package experiment

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/hosts"
	"github.com/tree-dbscan/tdbscan-launcher/launch/proc"
	"github.com/tree-dbscan/tdbscan-launcher/launch/stats"
	"github.com/tree-dbscan/tdbscan-launcher/launch/sweep"
	"github.com/tree-dbscan/tdbscan-launcher/launch/topology"
)

// Environment variables read by the front-end and the attached backends.
const (
	EnvTopology       = "MRNAPP_TOPOLOGY"
	EnvStartupTimeout = "MRNAPP_STARTUP_TIMEOUT"
	EnvNumBackends    = "MRNAPP_NUM_BACKENDS"
	EnvBEConnections  = "MRNAPP_BE_CONNECTIONS"
)

// ConnectionsFileName is where the front-end publishes the tree's attach
// points in attach mode.
const ConnectionsFileName = ".tdbscan-be-connections.txt"

// DefaultStartupTimeout is passed through to the overlay middleware.
const DefaultStartupTimeout = 60 * time.Second

// Config is fixed for every experiment of a launcher invocation.
type Config struct {
	Mode       launch.RunMode
	Hosts      launch.HostList
	HostSuffix string
	WorkDir    string // host files and topology file are written here

	Generator string         // topology generator executable
	FrontEnd  launch.Command // front-end with its clustering arguments
	Backend   launch.Command // one attached backend; attach mode only
	Launcher  []string       // parallel launcher template; defaults to proc.DefaultLauncher

	AttachDelay    time.Duration
	StartupTimeout time.Duration

	// Tasks is the task count of the input trace, copied into every row.
	Tasks int

	// ReferenceTable, when set, enables comparison scoring with Scorer.
	ReferenceTable string
	Scorer         *stats.Scorer

	// Output receives the engine's relayed output. Defaults to os.Stdout.
	Output io.Writer
}

// Params select one experiment.
type Params struct {
	Backends int
	FanIn    int
	Prefix   string // output prefix of the experiment's artifacts
}

// Result is what an experiment produced. Fields are filled as far as the
// pipeline got.
type Result struct {
	Spec    *topology.Spec
	Status  *proc.Status
	Summary *stats.Summary
}

// Runner executes experiments.
type Runner struct {
	Config Config
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg Config) *Runner {
	return &Runner{Config: cfg}
}

// Run executes one experiment.
//
// Planning, partitioning and topology failures abort before any engine
// process is started. An engine failure still aggregates whatever artifacts
// were left; the returned error then wraps launch.ErrEngineProcess.
func (r *Runner) Run(ctx context.Context, p Params) (*Result, error) {
	cfg := r.Config
	res := &Result{}

	spec, err := topology.Plan(p.Backends, p.FanIn, cfg.Mode)
	if err != nil {
		return res, err
	}
	res.Spec = spec
	logrus.Infof("NumBackends: %d FanIn: %d TopologySpec: %s TotalResources: %d",
		p.Backends, p.FanIn, spec, spec.TotalResources())

	roles, err := hosts.Partition(cfg.Hosts, cfg.Mode, p.Backends, cfg.HostSuffix)
	if err != nil {
		return res, err
	}
	files, err := roles.Persist(cfg.WorkDir)
	if err != nil {
		return res, err
	}

	builder := &topology.Builder{GeneratorPath: cfg.Generator, Dir: cfg.WorkDir}
	topo, err := builder.Build(ctx, files.TreeHosts, spec, roles.FrontEnd)
	if err != nil {
		return res, err
	}

	art := stats.Artifacts{Prefix: p.Prefix}
	fe, group := r.commands(p, topo, roles, files, art)

	orch := &proc.Orchestrator{Output: cfg.Output, AttachDelay: cfg.AttachDelay, Prefix: cfg.Mode == launch.BackendAttach}
	res.Status = orch.Run(ctx, cfg.Mode, fe, group)
	runErr := res.Status.Err()

	summary, aggErr := (&stats.Aggregator{Scorer: cfg.Scorer}).Aggregate(ctx, art, p.Backends, cfg.ReferenceTable)
	res.Summary = summary
	switch {
	case runErr != nil && aggErr != nil:
		logrus.Warnf("No statistics left by the failed run: %v", aggErr)
		return res, runErr
	case runErr != nil:
		return res, runErr
	case aggErr != nil:
		return res, fmt.Errorf("aggregating experiment statistics: %w", aggErr)
	}
	return res, nil
}

func (r *Runner) commands(p Params, topo *topology.File, roles *hosts.Roles, files *hosts.Files, art stats.Artifacts) (launch.Command, *proc.BackendGroup) {
	cfg := r.Config

	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	fe := cfg.FrontEnd
	fe.Args = append(append([]string(nil), cfg.FrontEnd.Args...), "-o", art.TraceFile())
	fe.Env = append(append([]string(nil), cfg.FrontEnd.Env...),
		EnvTopology+"="+topo.Path,
		EnvStartupTimeout+"="+strconv.Itoa(int(timeout/time.Second)),
		EnvNumBackends+"="+strconv.Itoa(p.Backends),
	)
	if cfg.Mode != launch.BackendAttach {
		return fe, nil
	}

	connections := EnvBEConnections + "=" + filepath.Join(cfg.WorkDir, ConnectionsFileName)
	fe.Env = append(fe.Env, connections)

	launcher := cfg.Launcher
	if len(launcher) == 0 {
		launcher = proc.DefaultLauncher
	}
	be := cfg.Backend
	be.Env = append(append([]string(nil), cfg.Backend.Env...), connections)
	return fe, &proc.BackendGroup{
		Launcher: launcher,
		Backend:  be,
		Hosts:    roles.AppHosts,
		HostFile: files.AppHosts,
		Count:    p.Backends,
	}
}

// SweepFunc adapts the runner to a sweep, deriving each experiment's unique
// prefix from outputPrefix.
func (r *Runner) SweepFunc(outputPrefix string) sweep.RunFunc {
	return func(ctx context.Context, cell sweep.Cell) (*sweep.Measurement, error) {
		res, err := r.Run(ctx, Params{Backends: cell.Backends, FanIn: cell.FanIn, Prefix: cell.Prefix(outputPrefix)})
		return r.Measure(res), err
	}
}

// Measure converts a Result, possibly partial or nil, into a sweep row's
// measurement.
func (r *Runner) Measure(res *Result) *sweep.Measurement {
	m := &sweep.Measurement{Tasks: r.Config.Tasks}
	if res == nil {
		return m
	}
	if res.Spec != nil {
		m.TotalResources = res.Spec.TotalResources()
	}
	m.Summary = res.Summary
	return m
}

