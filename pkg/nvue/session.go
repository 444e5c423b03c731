package nvue

import (
	"context"
	"strings"

	"github.com/newtron-network/nvconf/pkg/executor"
	"github.com/newtron-network/nvconf/pkg/util"
)

// Phase names one step of a session.
type Phase string

const (
	PhaseDetach   Phase = "detach"
	PhaseDiff     Phase = "diff"
	PhaseCommands Phase = "commands"
	PhaseApply    Phase = "apply"
	PhaseSave     Phase = "save"
)

// nv sub-commands issued by the session itself.
const (
	cmdDetach = "config detach"
	cmdDiff   = "config diff"
	cmdSave   = "config save"
)

// Diff holds the pending-configuration snapshots taken around the command run.
type Diff struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Result is returned by a completed session.
type Result struct {
	Changed bool     `json:"changed"`
	Diff    Diff     `json:"diff"`
	Output  []string `json:"msg"`
}

// Session runs requests against one device through an Executor.
type Session struct {
	exec    executor.Executor
	device  string
	onPhase func(Phase)
}

// Option configures a Session.
type Option func(*Session)

// WithDevice sets the device name used in log fields.
func WithDevice(name string) Option {
	return func(s *Session) { s.device = name }
}

// WithPhaseHook registers fn to be called after each phase that ran
// successfully. Skipped phases are not reported.
func WithPhaseHook(fn func(Phase)) Option {
	return func(s *Session) { s.onPhase = fn }
}

// NewSession creates a session controller on top of exec.
func NewSession(exec executor.Executor, opts ...Option) *Session {
	s := &Session{exec: exec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes req. The request is expected to have passed Validate.
// Any failing nv invocation aborts the session and is returned as a
// *util.ExecutionError; no partial result is returned.
func (s *Session) Run(ctx context.Context, req *Request) (*Result, error) {
	commands := req.ResolveCommands()
	flags := ResolveEffectiveFlags(req)

	if flags.Detach || req.CheckMode {
		if _, err := s.run(ctx, PhaseDetach, cmdDetach); err != nil {
			return nil, err
		}
		s.done(PhaseDetach)
	}

	before, err := s.run(ctx, PhaseDiff, cmdDiff)
	if err != nil {
		return nil, err
	}

	output := make([]string, 0, len(commands))
	for _, line := range commands {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out, err := s.run(ctx, PhaseCommands, line)
		if err != nil {
			return nil, err
		}
		output = append(output, out)
	}
	s.done(PhaseCommands)

	after, err := s.run(ctx, PhaseDiff, cmdDiff)
	if err != nil {
		return nil, err
	}
	s.done(PhaseDiff)

	// A diff change alone does not decide apply: "after" tells whether
	// anything is pending at all.
	changed := before != after

	if after != "" && flags.Apply && !req.CheckMode {
		changed = true
		out, err := s.run(ctx, PhaseApply, flags.ApplyCommand())
		if err != nil {
			return nil, err
		}
		if out != "" {
			output = append(output, out)
		}
		s.done(PhaseApply)
	}

	if req.Save && !req.CheckMode {
		changed = true
		out, err := s.run(ctx, PhaseSave, cmdSave)
		if err != nil {
			return nil, err
		}
		if out != "" {
			output = append(output, out)
		}
		s.done(PhaseSave)
	}

	util.WithDevice(s.device).WithFields(map[string]interface{}{
		"changed":    changed,
		"outputs":    len(output),
		"check_mode": req.CheckMode,
	}).Info("session complete")

	return &Result{
		Changed: changed,
		Diff:    Diff{Before: before, After: after},
		Output:  output,
	}, nil
}

// PendingDiff returns the current pending-configuration diff without
// changing anything on the device.
func (s *Session) PendingDiff(ctx context.Context) (string, error) {
	return s.run(ctx, PhaseDiff, cmdDiff)
}

// run executes one nv command and returns its trimmed stdout. A transport
// failure or non-zero exit becomes an ExecutionError.
func (s *Session) run(ctx context.Context, phase Phase, line string) (string, error) {
	util.WithPhase(s.device, string(phase)).WithField("command", line).Debug("running")

	res, err := s.exec.Execute(ctx, line)
	if err != nil {
		return "", &util.ExecutionError{Command: line, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return "", util.NewExecutionError(line, res.ExitCode, res.Stdout, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (s *Session) done(phase Phase) {
	if s.onPhase != nil {
		s.onPhase(phase)
	}
}
