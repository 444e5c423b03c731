package nvue

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/newtron-network/nvconf/internal/testutil"
	"github.com/newtron-network/nvconf/pkg/util"
)

func strPtr(s string) *string { return &s }

func runSession(t *testing.T, dev *testutil.FakeNV, req *Request, opts ...Option) *Result {
	t.Helper()
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	res, err := NewSession(dev, opts...).Run(context.Background(), req.WithDefaults())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestSession_CommandsOnly(t *testing.T) {
	dev := testutil.NewFakeNV()
	res := runSession(t, dev, &Request{Commands: []string{"set interface swp1"}})

	wantCalls := []string{"config diff", "set interface swp1", "config diff"}
	if got := dev.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
	if !res.Changed {
		t.Error("adding swp1 changes the diff, Changed should be true")
	}
	if res.Diff.Before != "" {
		t.Errorf("Before = %q, want empty", res.Diff.Before)
	}
	if res.Diff.After != "- set interface swp1" {
		t.Errorf("After = %q", res.Diff.After)
	}
	if !reflect.DeepEqual(res.Output, []string{""}) {
		t.Errorf("Output = %q, want one empty entry", res.Output)
	}
}

func TestSession_Apply(t *testing.T) {
	dev := testutil.NewFakeNV()
	res := runSession(t, dev, &Request{
		Commands: []string{"set platform hostname value cumulus-1"},
		Apply:    true,
	})

	if n := dev.Called("config apply --assume-yes"); n != 1 {
		t.Fatalf("apply called %d times, want 1", n)
	}
	if last := dev.Calls()[len(dev.Calls())-1]; last != "config apply --assume-yes" {
		t.Errorf("apply command = %q", last)
	}
	if !res.Changed {
		t.Error("Changed should be true after apply")
	}
	if !reflect.DeepEqual(res.Output, []string{"", "applied"}) {
		t.Errorf("Output = %q", res.Output)
	}
	if dev.Called("config detach") != 0 || dev.Called("config save") != 0 {
		t.Error("detach and save should not run")
	}
}

func TestSession_ApplySkippedWhenNothingPending(t *testing.T) {
	dev := testutil.NewFakeNV().Applied("set interface swp1")
	res := runSession(t, dev, &Request{
		Commands: []string{"set interface swp1"},
		Apply:    true,
	})

	if dev.Called("config apply") != 0 {
		t.Error("apply must not run with an empty pending diff")
	}
	if res.Changed {
		t.Error("Changed should be false: no diff and no apply")
	}
}

func TestSession_ApplyForcesChangedWithoutDiffChange(t *testing.T) {
	// Pending before and after are identical, but something is pending,
	// so apply runs and reports a change.
	dev := testutil.NewFakeNV().Stage("set interface swp1")
	res := runSession(t, dev, &Request{
		Commands: []string{"show interface swp1"},
		Apply:    true,
	})

	if res.Diff.Before != res.Diff.After {
		t.Fatalf("diff should be unchanged: %q vs %q", res.Diff.Before, res.Diff.After)
	}
	if dev.Called("config apply") != 1 {
		t.Error("apply should run when something is pending")
	}
	if !res.Changed {
		t.Error("apply forces Changed")
	}
}

func TestSession_CheckMode(t *testing.T) {
	dev := testutil.NewFakeNV().Stage("set interface swp9")
	res := runSession(t, dev, &Request{
		Commands:  []string{"set interface swp1"},
		Apply:     true,
		Save:      true,
		CheckMode: true,
	})

	wantCalls := []string{"config detach", "config diff", "set interface swp1", "config diff"}
	if got := dev.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
	if res.Diff.Before != "" {
		t.Errorf("detach should clear the stale buffer, Before = %q", res.Diff.Before)
	}
	if res.Diff.After != "- set interface swp1" {
		t.Errorf("After = %q", res.Diff.After)
	}
	if !res.Changed {
		t.Error("Changed should reflect the diff comparison")
	}
	if len(res.Output) != 1 {
		t.Errorf("Output = %q, want only the command output", res.Output)
	}
}

func TestSession_CheckModeNeverMutates(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"apply", Request{Apply: true}},
		{"save", Request{Save: true}},
		{"atomic", Request{Atomic: true}},
		{"confirm", Request{Confirm: true}},
		{"apply+save", Request{Apply: true, Save: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutil.NewFakeNV()
			req := tt.req
			req.Commands = []string{"set interface swp1"}
			req.CheckMode = true

			res := runSession(t, dev, &req)

			if dev.Called("config apply") != 0 {
				t.Error("apply must not run in check mode")
			}
			if dev.Called("config save") != 0 {
				t.Error("save must not run in check mode")
			}
			if dev.Called("config detach") != 1 {
				t.Error("check mode always detaches")
			}
			if len(res.Output) != 1 {
				t.Errorf("Output = %q", res.Output)
			}
		})
	}
}

func TestSession_Atomic(t *testing.T) {
	atomicDev := testutil.NewFakeNV().Stage("set interface swp9")
	atomicRes := runSession(t, atomicDev, &Request{
		Commands: []string{"set interface swp1"},
		Atomic:   true,
	})

	explicitDev := testutil.NewFakeNV().Stage("set interface swp9")
	explicitRes := runSession(t, explicitDev, &Request{
		Commands: []string{"set interface swp1"},
		Detach:   true,
		Apply:    true,
	})

	if !reflect.DeepEqual(atomicDev.Calls(), explicitDev.Calls()) {
		t.Errorf("atomic calls %v differ from detach+apply calls %v", atomicDev.Calls(), explicitDev.Calls())
	}
	if !reflect.DeepEqual(atomicRes, explicitRes) {
		t.Errorf("atomic result %+v differs from detach+apply result %+v", atomicRes, explicitRes)
	}
	if atomicDev.Called("config save") != 0 {
		t.Error("atomic does not save")
	}
	if atomicDev.Calls()[0] != "config detach" {
		t.Errorf("first call = %q, want config detach", atomicDev.Calls()[0])
	}
}

func TestSession_Confirm(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"confirm with timeout", Request{Confirm: true, ConfirmTimeout: "30s"}, "config apply --assume-yes --confirm 30s"},
		{"confirm default timeout", Request{Confirm: true}, "config apply --assume-yes --confirm 10m"},
		{"confirm yes", Request{Apply: true, ConfirmYes: true}, "config apply --assume-yes --confirm-yes"},
		{"confirm no", Request{Apply: true, ConfirmNo: true}, "config apply --assume-yes --confirm-no"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutil.NewFakeNV()
			req := tt.req
			req.Commands = []string{"set interface swp1"}

			runSession(t, dev, &req)

			calls := dev.Calls()
			if last := calls[len(calls)-1]; last != tt.want {
				t.Errorf("apply command = %q, want %q", last, tt.want)
			}
		})
	}
}

func TestSession_ConfirmYesWithoutApply(t *testing.T) {
	dev := testutil.NewFakeNV()
	runSession(t, dev, &Request{Commands: []string{"set interface swp1"}, ConfirmYes: true})

	if dev.Called("config apply") != 0 {
		t.Error("confirm_yes alone does not imply apply")
	}
}

func TestSession_Save(t *testing.T) {
	dev := testutil.NewFakeNV()
	res := runSession(t, dev, &Request{Commands: []string{"show interface swp1"}, Save: true})

	if dev.Called("config save") != 1 {
		t.Fatal("save should run")
	}
	if !res.Changed {
		t.Error("save forces Changed even without a diff change")
	}
	if !reflect.DeepEqual(res.Output, []string{"interface swp1: up", "saved"}) {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestSession_EmptyPhaseOutputNotCollected(t *testing.T) {
	dev := testutil.NewFakeNV()
	dev.ApplyOutput = strPtr("  \n")
	dev.SaveOutput = strPtr("")

	res := runSession(t, dev, &Request{
		Commands: []string{"set interface swp1", "set interface swp2"},
		Apply:    true,
		Save:     true,
	})

	if len(res.Output) != 2 {
		t.Errorf("Output = %q, want only the two command outputs", res.Output)
	}
	if dev.Called("config apply") != 1 || dev.Called("config save") != 1 {
		t.Error("apply and save should still run")
	}
}

func TestSession_OutputLength(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		staged  bool
		wantLen int
	}{
		{"commands only", Request{Commands: []string{"set a", "set b", "set c"}}, false, 3},
		{"blank lines skipped", Request{Commands: []string{"set a", "  ", "", "set b"}}, false, 2},
		{"apply", Request{Commands: []string{"set a"}, Apply: true}, false, 2},
		{"apply+save", Request{Commands: []string{"set a"}, Apply: true, Save: true}, false, 3},
		{"save only", Request{Commands: []string{"show a"}, Save: true}, false, 2},
		{"apply nothing pending", Request{Commands: []string{"show a"}, Apply: true}, false, 1},
		{"apply stale pending", Request{Commands: []string{"show a"}, Apply: true}, true, 2},
		{"no commands", Request{}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutil.NewFakeNV()
			if tt.staged {
				dev.Stage("set z")
			}
			req := tt.req
			res := runSession(t, dev, &req)
			if len(res.Output) != tt.wantLen {
				t.Errorf("len(Output) = %d, want %d (%q)", len(res.Output), tt.wantLen, res.Output)
			}
		})
	}
}

func TestSession_Idempotent(t *testing.T) {
	dev := testutil.NewFakeNV()
	req := &Request{Commands: []string{"set interface swp1", "set interface swp2"}, Apply: true}

	first := runSession(t, dev, req)
	if !first.Changed {
		t.Fatal("first run should change the device")
	}

	second := runSession(t, dev, req)
	if second.Changed {
		t.Errorf("second run should be unchanged, diff %+v", second.Diff)
	}
	if n := dev.Called("config apply"); n != 1 {
		t.Errorf("apply ran %d times, want 1", n)
	}
}

func TestSession_Template(t *testing.T) {
	dev := testutil.NewFakeNV()
	res := runSession(t, dev, &Request{
		Template: "set interface swp1\n\n  set interface swp2  \n\n",
	})

	wantCalls := []string{"config diff", "set interface swp1", "set interface swp2", "config diff"}
	if got := dev.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
	if len(res.Output) != 2 {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestSession_CommandFailureAborts(t *testing.T) {
	dev := testutil.NewFakeNV().Fail("set interface bogus", 1, "Error: 'bogus' is not a valid interface\n")

	req := (&Request{
		Commands: []string{"set interface swp1", "set interface bogus", "set interface swp2"},
		Apply:    true,
		Save:     true,
	}).WithDefaults()
	res, err := NewSession(dev).Run(context.Background(), req)

	if res != nil {
		t.Errorf("expected no partial result, got %+v", res)
	}
	var execErr *util.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *util.ExecutionError", err)
	}
	if execErr.Command != "set interface bogus" {
		t.Errorf("Command = %q", execErr.Command)
	}
	if execErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", execErr.ExitCode)
	}
	if execErr.Stderr != "Error: 'bogus' is not a valid interface\n" {
		t.Errorf("Stderr = %q", execErr.Stderr)
	}
	if !errors.Is(err, util.ErrExecutionFailed) {
		t.Error("error should match ErrExecutionFailed")
	}

	wantCalls := []string{"config diff", "set interface swp1", "set interface bogus"}
	if got := dev.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestSession_PhaseFailures(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		fail     string
		maxCalls int
	}{
		{"detach", Request{Detach: true}, "config detach", 1},
		{"first diff", Request{}, "config diff", 1},
		{"apply", Request{Apply: true}, "config apply --assume-yes", 4},
		{"save", Request{Save: true}, "config save", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutil.NewFakeNV().Fail(tt.fail, 255, "boom")
			req := tt.req
			req.Commands = []string{"set interface swp1"}

			_, err := NewSession(dev).Run(context.Background(), req.WithDefaults())

			var execErr *util.ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("err = %v, want *util.ExecutionError", err)
			}
			if execErr.Command != tt.fail || execErr.ExitCode != 255 {
				t.Errorf("err = %+v", execErr)
			}
			if n := len(dev.Calls()); n != tt.maxCalls {
				t.Errorf("made %d calls, want %d: %v", n, tt.maxCalls, dev.Calls())
			}
		})
	}
}

func TestSession_TransportFailure(t *testing.T) {
	dev := testutil.NewFakeNV().FailTransport("config detach")

	_, err := NewSession(dev).Run(context.Background(), (&Request{Atomic: true}).WithDefaults())

	if !errors.Is(err, testutil.ErrTransport) {
		t.Errorf("err = %v, want wrapped transport error", err)
	}
	if !errors.Is(err, util.ErrExecutionFailed) {
		t.Errorf("err = %v, want ErrExecutionFailed", err)
	}
	if n := len(dev.Calls()); n != 1 {
		t.Errorf("made %d calls, want 1", n)
	}
}

func TestSession_PhaseHook(t *testing.T) {
	dev := testutil.NewFakeNV()
	var phases []Phase

	runSession(t, dev, &Request{Commands: []string{"set interface swp1"}, Atomic: true, Save: true},
		WithDevice("leaf1"),
		WithPhaseHook(func(p Phase) { phases = append(phases, p) }),
	)

	want := []Phase{PhaseDetach, PhaseCommands, PhaseDiff, PhaseApply, PhaseSave}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestSession_PendingDiff(t *testing.T) {
	dev := testutil.NewFakeNV().Stage("set interface swp2")
	s := NewSession(dev)

	got, err := s.PendingDiff(context.Background())
	if err != nil {
		t.Fatalf("PendingDiff: %v", err)
	}
	if got != "- set interface swp2" {
		t.Errorf("PendingDiff = %q", got)
	}
	if calls := dev.Calls(); len(calls) != 1 || calls[0] != "config diff" {
		t.Errorf("calls = %v, want only config diff", calls)
	}
}
