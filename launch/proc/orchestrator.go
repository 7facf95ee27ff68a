// Package proc launches the engine processes of a run, relays their combined
// output live and joins on their exit.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// DefaultAttachDelay is how long the tree gets to assemble before detached
// backends are launched.
const DefaultAttachDelay = 10 * time.Second

// Result is the exit of one launched process.
type Result struct {
	Name     string
	Command  string
	ExitCode int   // -1 when the process could not be started or waited on
	Err      error // nil on a clean zero exit
}

// Failed reports whether the process did not exit cleanly.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Status is the union exit status of a run.
type Status struct {
	Results []Result
}

// OK reports whether every launched process exited with status 0.
func (s *Status) OK() bool {
	for _, r := range s.Results {
		if r.Failed() {
			return false
		}
	}
	return true
}

// ExitCode is 0 when every process succeeded, otherwise the first non-zero
// exit code in launch order.
func (s *Status) ExitCode() int {
	for _, r := range s.Results {
		if r.Failed() {
			if r.ExitCode == 0 {
				return -1
			}
			return r.ExitCode
		}
	}
	return 0
}

// Err returns nil when OK, otherwise launch.ErrEngineProcess describing each
// failed participant.
func (s *Status) Err() error {
	var failed []string
	for _, r := range s.Results {
		if !r.Failed() {
			continue
		}
		if r.Err != nil && r.ExitCode == -1 {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Name, r.Err))
		} else {
			failed = append(failed, fmt.Sprintf("%s exited with status %d", r.Name, r.ExitCode))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", launch.ErrEngineProcess, strings.Join(failed, "; "))
}

// Orchestrator owns the processes of a single run.
type Orchestrator struct {
	// Output receives the combined stdout/stderr of every process, line by
	// line, as it is produced. Defaults to os.Stdout.
	Output io.Writer

	// AttachDelay is the grace interval between starting the front-end and
	// launching the backend group in attach mode.
	AttachDelay time.Duration

	// Prefix tags relayed lines with "[name] ".
	Prefix bool
}

type process struct {
	spec   launch.Command
	cmd    *exec.Cmd
	stream io.ReadCloser
}

func (o *Orchestrator) start(c launch.Command) (*process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	stream, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	// One pipe for both streams keeps their relative order.
	cmd.Stderr = cmd.Stdout

	logrus.Infof("Running: %s", c)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &process{spec: c, cmd: cmd, stream: stream}, nil
}

// wait drains the process output into sink, then reaps it.
func (o *Orchestrator) wait(p *process, sink *syncWriter) Result {
	res := Result{Name: p.spec.Name, Command: p.spec.String()}

	prefix := ""
	if o.Prefix {
		prefix = "[" + p.spec.Name + "] "
	}
	relayErr := relay(p.stream, sink, prefix)
	if relayErr != nil {
		logrus.Warnf("Relaying output of %s: %v", p.spec.Name, relayErr)
	}

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.Err = err
	default:
		res.ExitCode = -1
		res.Err = err
	}
	logrus.Infof("%s exited with status %d", p.spec.Name, res.ExitCode)
	return res
}

// Run launches the front-end and, in attach mode, the backend group after the
// grace interval. It blocks until every launched process has exited.
//
// The returned Status is never nil. Processes are never killed: cancelling
// ctx during the grace interval only prevents the backend group from being
// launched.
func (o *Orchestrator) Run(ctx context.Context, mode launch.RunMode, frontEnd launch.Command, backends *BackendGroup) *Status {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	sink := &syncWriter{w: out}
	if frontEnd.Name == "" {
		frontEnd.Name = "FE"
	}

	status := &Status{}
	fe, err := o.start(frontEnd)
	if err != nil {
		status.Results = append(status.Results, Result{Name: frontEnd.Name, Command: frontEnd.String(), ExitCode: -1, Err: err})
		logrus.Errorf("Could not start %s: %v", frontEnd.Name, err)
		return status
	}

	results := make([]Result, 2)
	var g errgroup.Group
	g.Go(func() error {
		results[0] = o.wait(fe, sink)
		return nil
	})
	launched := 1

	if mode == launch.BackendAttach && backends != nil {
		be, failed := o.launchBackends(ctx, backends)
		switch {
		case be != nil:
			g.Go(func() error {
				results[1] = o.wait(be, sink)
				return nil
			})
			launched = 2
		case failed != nil:
			results[1] = *failed
			launched = 2
		}
	}

	_ = g.Wait()
	status.Results = results[:launched]
	return status
}

// launchBackends waits the grace interval and starts the backend group. It
// returns nil, nil when ctx ends first, and a failed Result when the group
// could not be started.
func (o *Orchestrator) launchBackends(ctx context.Context, group *BackendGroup) (*process, *Result) {
	if o.AttachDelay > 0 {
		logrus.Infof("Waiting %v for the tree to assemble before attaching %d backends...", o.AttachDelay, group.Count)
		timer := time.NewTimer(o.AttachDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logrus.Warnf("Backend launch skipped: %v", ctx.Err())
			return nil, nil
		case <-timer.C:
		}
	}

	cmd, err := group.Command()
	if err != nil {
		return nil, &Result{Name: "BE", ExitCode: -1, Err: err}
	}
	be, err := o.start(cmd)
	if err != nil {
		logrus.Errorf("Could not start %s: %v", cmd.Name, err)
		return nil, &Result{Name: cmd.Name, Command: cmd.String(), ExitCode: -1, Err: err}
	}
	return be, nil
}
