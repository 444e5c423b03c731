package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/newtron-network/nvconf/pkg/audit"
	"github.com/newtron-network/nvconf/pkg/cli"
	"github.com/newtron-network/nvconf/pkg/executor"
	"github.com/newtron-network/nvconf/pkg/metrics"
	"github.com/newtron-network/nvconf/pkg/nvue"
	"github.com/newtron-network/nvconf/pkg/util"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	file           string
	commands       []string
	template       string
	templateFile   string
	apply          bool
	atomic         bool
	detach         bool
	save           bool
	confirm        bool
	confirmTimeout string
	confirmYes     bool
	confirmNo      bool
	check          bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run nv commands in a configuration session",
	Long: `Run nv commands against the pending configuration.

The session detaches stale pending changes when asked, records the pending
diff before and after the commands and, with --apply or --atomic, applies
the result. --save persists the applied configuration to the startup file.

Options may come from a YAML request file (-f); flags override file values.

Examples:
  nvconf -H leaf1 run -c 'set interface swp1 link state up' --apply
  nvconf -H leaf1 run -f vlan10.yaml --atomic --save
  nvconf -H leaf1 run --template-file bgp.nv --confirm --confirm-timeout 5m
  nvconf -H leaf1 run -c 'set system hostname leaf1' --check`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOpts.execute(cmd.Context(), cmd.OutOrStdout(), cmd.Flags())
	},
}

func init() {
	runOpts.register(runCmd.Flags())
}

// register defines the run flags on f, bound to o.
func (o *runFlags) register(f *pflag.FlagSet) {
	f.StringVarP(&o.file, "file", "f", "", "Request file (YAML)")
	f.StringArrayVarP(&o.commands, "command", "c", nil, "nv command to run (repeatable)")
	f.StringVar(&o.template, "template", "", "Multi-line block of nv commands")
	f.StringVar(&o.templateFile, "template-file", "", "Read the command block from a file")
	f.BoolVar(&o.apply, "apply", false, "Apply pending changes after the commands")
	f.BoolVar(&o.atomic, "atomic", false, "Detach first, then apply (only this session's changes)")
	f.BoolVar(&o.detach, "detach", false, "Drop pending changes before the commands")
	f.BoolVar(&o.save, "save", false, "Save the applied configuration")
	f.BoolVar(&o.confirm, "confirm", false, "Apply with automatic rollback unless confirmed")
	f.StringVar(&o.confirmTimeout, "confirm-timeout", nvue.DefaultConfirmTimeout, "Rollback deadline for --confirm (e.g. 90s, 10m, 1h)")
	f.BoolVar(&o.confirmYes, "confirm-yes", false, "Confirm a pending --confirm apply")
	f.BoolVar(&o.confirmNo, "confirm-no", false, "Reject a pending --confirm apply")
	f.BoolVar(&o.check, "check", false, "Dry run: report the diff, never apply or save")
}

// execute builds and validates the request, then runs it. An invalid
// request never reaches the device.
func (o *runFlags) execute(ctx context.Context, out io.Writer, flags *pflag.FlagSet) error {
	req, err := o.request(flags)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return runSession(ctx, out, req)
}

// request builds the session request from the request file (if any) and
// the flags given on the command line. Only flags that were set override
// file values.
func (o *runFlags) request(flags *pflag.FlagSet) (*nvue.Request, error) {
	req := &nvue.Request{}
	if o.file != "" {
		r, err := nvue.LoadRequestFile(o.file)
		if err != nil {
			return nil, err
		}
		req = r
	}

	// A command source given on the command line replaces the file's,
	// whichever of commands or template the file used.
	if flags.Changed("command") {
		req.Commands = o.commands
		req.Template = ""
	}
	if flags.Changed("template") {
		req.Template = o.template
		req.Commands = nil
	}
	if o.templateFile != "" {
		if flags.Changed("template") {
			return nil, fmt.Errorf("--template and --template-file are mutually exclusive")
		}
		data, err := os.ReadFile(o.templateFile)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		req.Template = string(data)
		req.Commands = nil
	}

	bools := []struct {
		name string
		dst  *bool
		val  bool
	}{
		{"apply", &req.Apply, o.apply},
		{"atomic", &req.Atomic, o.atomic},
		{"detach", &req.Detach, o.detach},
		{"save", &req.Save, o.save},
		{"confirm", &req.Confirm, o.confirm},
		{"confirm-yes", &req.ConfirmYes, o.confirmYes},
		{"confirm-no", &req.ConfirmNo, o.confirmNo},
		{"check", &req.CheckMode, o.check},
	}
	for _, b := range bools {
		if flags.Changed(b.name) {
			*b.dst = b.val
		}
	}
	if flags.Changed("confirm-timeout") {
		req.ConfirmTimeout = o.confirmTimeout
	}

	return req.WithDefaults(), nil
}

// connect opens an executor for the selected device. The returned func
// releases it. Tests replace connect with an in-memory device.
var connect = func() (executor.Executor, func() error, error) {
	if app.host == "" {
		return executor.NewLocalExecutor(app.nvPath), func() error { return nil }, nil
	}

	password := app.password
	if app.askPass {
		fmt.Fprintf(os.Stderr, "%s@%s password: ", app.user, app.host)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, nil, fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	}

	var knownHosts string
	if app.settings != nil {
		knownHosts = app.settings.KnownHostsFile
	}
	e, err := executor.DialSSH(executor.SSHConfig{
		Host:           app.host,
		Port:           app.port,
		User:           app.user,
		Password:       password,
		IdentityFile:   app.identityFile,
		KnownHostsFile: knownHosts,
		NVPath:         app.nvPath,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, e.Close, nil
}

// runSession executes req, records the audit event and metrics, and prints
// the result. The event and metrics are written even when the device cannot
// be reached.
func runSession(ctx context.Context, out io.Writer, req *nvue.Request) error {
	device := app.device()
	start := time.Now()

	m := metrics.NewRecorder()
	event := audit.NewEvent(currentUser(), device, "run").WithCheckMode(req.CheckMode)

	result, err := execSession(ctx, device, req, m, event)
	record(event, m, req, result, err, time.Since(start))
	if err != nil {
		return err
	}

	if app.jsonOutput {
		return writeJSON(out, result)
	}
	printResult(out, result, req.CheckMode)
	return nil
}

// execSession connects to device and runs req. Every nv call made is
// attached to event.
func execSession(ctx context.Context, device string, req *nvue.Request, m *metrics.Recorder, event *audit.Event) (*nvue.Result, error) {
	exec, release, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", device, err)
	}
	defer release()

	rec := executor.NewRecorder(exec, device)
	session := nvue.NewSession(rec,
		nvue.WithDevice(device),
		nvue.WithPhaseHook(func(p nvue.Phase) { m.Phase(string(p)) }),
	)

	result, err := session.Run(ctx, req)
	event.WithInvocations(rec.Invocations())
	return result, err
}

// record finishes the audit event and the metrics for one run.
func record(event *audit.Event, m *metrics.Recorder, req *nvue.Request, result *nvue.Result, runErr error, elapsed time.Duration) {
	event.WithDuration(elapsed)
	outcome := metrics.ResultFailed
	if runErr != nil {
		event.WithError(runErr)
	} else {
		event.WithResult(result.Changed, result.Diff.Before, result.Diff.After)
		outcome = metrics.ResultUnchanged
		if result.Changed {
			outcome = metrics.ResultChanged
		}
	}
	if err := audit.Log(event); err != nil {
		util.Warnf("Could not write audit event: %v", err)
	}

	m.Session(outcome, countCommands(req), elapsed)
	if app.metricsFile == "" {
		return
	}
	if err := m.Seed(app.metricsFile); err != nil {
		util.Warnf("Could not read previous metrics: %v", err)
	}
	if err := m.WriteTextfile(app.metricsFile); err != nil {
		util.Warnf("Could not write metrics: %v", err)
	}
}

func countCommands(req *nvue.Request) int {
	n := 0
	for _, c := range req.ResolveCommands() {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func printResult(w io.Writer, r *nvue.Result, checkMode bool) {
	if r.Changed {
		fmt.Fprintln(w, bold("changed: ")+yellow("true"))
	} else {
		fmt.Fprintln(w, bold("changed: ")+green("false"))
	}

	fmt.Fprintln(w, bold("diff before:"))
	fmt.Fprintln(w, cli.Indent(r.Diff.Before, "  "))
	fmt.Fprintln(w, bold("diff after:"))
	fmt.Fprintln(w, cli.Indent(r.Diff.After, "  "))

	if len(r.Output) > 0 {
		fmt.Fprintln(w, bold("output:"))
		for _, o := range r.Output {
			fmt.Fprintln(w, cli.Indent(o, "  "))
		}
	}

	if checkMode {
		fmt.Fprintln(w, "\n"+yellow("CHECK MODE: nothing applied or saved."))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
