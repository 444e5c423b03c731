// Package executor runs NVUE (nv) sub-commands against a Cumulus Linux device,
// either on the local host or over SSH.
package executor

import (
	"context"
	"time"

	"github.com/newtron-network/nvconf/pkg/util"
)

// DefaultNVPath is where Cumulus Linux installs the NVUE CLI.
const DefaultNVPath = "/usr/bin/nv"

// Result is the outcome of a single nv invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs one nv sub-command line (e.g. "config diff") and blocks
// until it finishes. A non-zero exit status is reported in Result.ExitCode;
// the returned error is reserved for failures to run the command at all.
type Executor interface {
	Execute(ctx context.Context, commandLine string) (*Result, error)
}

// Invocation is one recorded call through a Recorder.
type Invocation struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"rc"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Recorder wraps an Executor, logging every call and keeping an ordered
// record of what was run. Not safe for concurrent use; a session is
// strictly sequential.
type Recorder struct {
	next        Executor
	device      string
	invocations []Invocation
}

// NewRecorder wraps next. device is only used as a log field.
func NewRecorder(next Executor, device string) *Recorder {
	return &Recorder{next: next, device: device}
}

// Execute runs the command through the wrapped executor.
func (r *Recorder) Execute(ctx context.Context, commandLine string) (*Result, error) {
	log := util.WithDevice(r.device).WithField("command", commandLine)
	log.Debug("nv exec")

	start := time.Now()
	res, err := r.next.Execute(ctx, commandLine)
	inv := Invocation{Command: commandLine, Duration: time.Since(start)}

	switch {
	case err != nil:
		inv.ExitCode = -1
		inv.Err = err.Error()
		log.WithError(err).Warn("nv exec failed")
	case res.ExitCode != 0:
		inv.ExitCode = res.ExitCode
		log.WithField("rc", res.ExitCode).Warn("nv exited non-zero")
	default:
		log.WithField("duration", inv.Duration).Debug("nv exec done")
	}

	r.invocations = append(r.invocations, inv)
	return res, err
}

// Invocations returns the calls made so far, in order.
func (r *Recorder) Invocations() []Invocation {
	out := make([]Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

// Commands returns just the command lines of the recorded calls.
func (r *Recorder) Commands() []string {
	cmds := make([]string, len(r.invocations))
	for i, inv := range r.invocations {
		cmds[i] = inv.Command
	}
	return cmds
}
