// Package testutil provides test helpers: an in-memory NVUE device for unit
// tests and Redis helpers for integration tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/newtron-network/nvconf/pkg/executor"
)

// ErrTransport is returned by FakeNV for commands registered with FailTransport.
var ErrTransport = errors.New("fake transport failure")

// FakeNV is an in-memory stand-in for the nv CLI. It models a pending
// buffer on top of an applied configuration:
//
//	set/unset <path>      stage a change (output: empty)
//	show <path>           echo the path (output: "<path>: up")
//	config diff           pending lines not yet applied
//	config detach         drop pending changes
//	config apply ...      merge pending into applied (output: "applied")
//	config save           output "saved"
type FakeNV struct {
	mu        sync.Mutex
	applied   map[string]bool
	pending   []string
	calls     []string
	failures  map[string]executor.Result
	transport map[string]bool

	// ApplyOutput overrides the output of "config apply" when non-nil.
	ApplyOutput *string
	// SaveOutput overrides the output of "config save" when non-nil.
	SaveOutput *string
}

// NewFakeNV returns a device with nothing applied and nothing pending.
func NewFakeNV() *FakeNV {
	return &FakeNV{
		applied:   map[string]bool{},
		failures:  map[string]executor.Result{},
		transport: map[string]bool{},
	}
}

// Stage adds lines to the pending buffer as if a previous session had left them.
func (f *FakeNV) Stage(lines ...string) *FakeNV {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, lines...)
	return f
}

// Applied marks lines as already part of the applied configuration.
func (f *FakeNV) Applied(lines ...string) *FakeNV {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		f.applied[l] = true
	}
	return f
}

// Fail makes commandLine exit with rc and stderr.
func (f *FakeNV) Fail(commandLine string, rc int, stderr string) *FakeNV {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[commandLine] = executor.Result{ExitCode: rc, Stderr: stderr}
	return f
}

// FailTransport makes commandLine return ErrTransport.
func (f *FakeNV) FailTransport(commandLine string) *FakeNV {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transport[commandLine] = true
	return f
}

// Calls returns every command line received, in order.
func (f *FakeNV) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports how many received command lines start with prefix.
func (f *FakeNV) Called(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Execute implements executor.Executor.
func (f *FakeNV) Execute(ctx context.Context, commandLine string) (*executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commandLine)

	if f.transport[commandLine] {
		return nil, ErrTransport
	}
	if res, ok := f.failures[commandLine]; ok {
		return &res, nil
	}

	switch {
	case commandLine == "config diff":
		return &executor.Result{Stdout: f.diffLocked()}, nil
	case commandLine == "config detach":
		f.pending = nil
		return &executor.Result{}, nil
	case strings.HasPrefix(commandLine, "config apply"):
		for _, l := range f.pending {
			f.applied[l] = true
		}
		f.pending = nil
		out := "applied\n"
		if f.ApplyOutput != nil {
			out = *f.ApplyOutput
		}
		return &executor.Result{Stdout: out}, nil
	case commandLine == "config save":
		out := "saved\n"
		if f.SaveOutput != nil {
			out = *f.SaveOutput
		}
		return &executor.Result{Stdout: out}, nil
	case strings.HasPrefix(commandLine, "set "), strings.HasPrefix(commandLine, "unset "):
		f.pending = append(f.pending, commandLine)
		return &executor.Result{}, nil
	case strings.HasPrefix(commandLine, "show "):
		return &executor.Result{Stdout: strings.TrimPrefix(commandLine, "show ") + ": up\n"}, nil
	}
	return &executor.Result{ExitCode: 1, Stderr: fmt.Sprintf("Error: unknown command %q\n", commandLine)}, nil
}

func (f *FakeNV) diffLocked() string {
	seen := map[string]bool{}
	var lines []string
	for _, l := range f.pending {
		if f.applied[l] || seen[l] {
			continue
		}
		seen[l] = true
		lines = append(lines, "- "+l)
	}
	if len(lines) == 0 {
		return "\n"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
