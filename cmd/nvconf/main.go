// nvconf - Cumulus Linux NVUE configuration session tool
//
// nvconf pushes a batch of nv commands to a switch's pending configuration,
// reports the before/after diff and optionally applies and saves it:
//
//	nvconf [-H <host>] run -c '<nv command>' [-c ...] [--apply|--atomic] [--save]
//
// Without -H the local nv binary is used; with -H commands run over SSH.
//
// Examples:
//
//	nvconf -H leaf1 run -c 'set interface swp1 link state up' --apply
//	nvconf -H leaf1 run -f vlan10.yaml --atomic --save
//	nvconf -H leaf1 run --template-file bgp.nv --check
//	nvconf -H leaf1 diff
//	nvconf audit list --device leaf1 --last 24h
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/nvconf/pkg/audit"
	"github.com/newtron-network/nvconf/pkg/cli"
	"github.com/newtron-network/nvconf/pkg/executor"
	"github.com/newtron-network/nvconf/pkg/settings"
	"github.com/newtron-network/nvconf/pkg/util"
	"github.com/newtron-network/nvconf/pkg/version"
)

// appState holds global flag values and state shared by all commands.
type appState struct {
	host         string
	user         string
	password     string
	askPass      bool
	identityFile string
	port         int
	nvPath       string

	jsonOutput  bool
	verbose     bool
	auditLog    string
	auditRedis  string
	metricsFile string

	settings *settings.Settings
}

var app = &appState{}

func main() {
	err := rootCmd.Execute()
	audit.Close()
	if err != nil {
		printFailure(os.Stdout, os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "nvconf",
	Short:             "Cumulus Linux NVUE configuration session tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `nvconf runs nv commands against a switch's pending configuration,
reports what changed and optionally applies and saves the result.

  nvconf [-H <host>] run -c '<nv command>' [--apply|--atomic] [--save]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		util.SetVerbose(app.verbose)
		if app.jsonOutput {
			cli.SetColor(false)
		}

		if isSettingsOrHelp(cmd) {
			return nil
		}

		s, err := settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			s = &settings.Settings{}
		}
		app.settings = s
		app.applySettings(s)

		if err := initAudit(); err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Target selection
	pf.StringVarP(&app.host, "host", "H", "", "Switch to manage over SSH (default: local nv)")
	pf.StringVarP(&app.user, "user", "u", "", "SSH user")
	pf.StringVar(&app.password, "password", "", "SSH password")
	pf.BoolVar(&app.askPass, "ask-pass", false, "Prompt for the SSH password")
	pf.StringVarP(&app.identityFile, "identity", "i", "", "SSH private key file")
	pf.IntVar(&app.port, "port", 22, "SSH port")
	pf.StringVar(&app.nvPath, "nv-path", "", "Path of the nv binary (default "+executor.DefaultNVPath+")")

	// Output and bookkeeping
	pf.BoolVar(&app.jsonOutput, "json", false, "JSON output")
	pf.BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")
	pf.StringVar(&app.auditLog, "audit-log", "", "Audit log file (default "+settings.DefaultAuditLog+")")
	pf.StringVar(&app.auditRedis, "audit-redis", "", "Send audit events to Redis (host:port or redis:// URL)")
	pf.StringVar(&app.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Configuration Sessions:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{runCmd, diffCmd} {
		cmd.GroupID = "session"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{auditCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String("nvconf"))
	},
}

// applySettings fills flags the user did not give from persistent settings.
func (a *appState) applySettings(s *settings.Settings) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&a.host, s.Host)
	fill(&a.user, s.User)
	fill(&a.identityFile, s.IdentityFile)
	fill(&a.nvPath, s.NVPath)
	fill(&a.auditRedis, s.AuditRedis)
	fill(&a.metricsFile, s.MetricsFile)
	fill(&a.auditLog, s.GetAuditLog())
}

// device is the name used for logs and audit events.
func (a *appState) device() string {
	if a.host == "" {
		return "localhost"
	}
	return a.host
}

// initAudit installs the audit logger selected by --audit-redis or --audit-log.
func initAudit() error {
	if app.auditRedis != "" {
		l, err := audit.NewRedisLogger(audit.RedisConfig{
			Addr:   app.auditRedis,
			MaxLen: 10000,
		})
		if err != nil {
			return err
		}
		audit.SetDefaultLogger(l)
		return nil
	}

	l, err := audit.NewFileLogger(app.auditLog, audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 10,
	})
	if err != nil {
		return err
	}
	audit.SetDefaultLogger(l)
	return nil
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// failure is the JSON document printed when a command fails with --json.
type failure struct {
	Failed bool        `json:"failed"`
	Msg    interface{} `json:"msg"`
}

// executionFailure mirrors the details of a failed nv invocation.
type executionFailure struct {
	Msg    string `json:"msg"`
	RC     int    `json:"rc"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// printFailure reports err as JSON on out when --json is set, otherwise as
// text on errOut.
func printFailure(out, errOut io.Writer, err error) {
	if !app.jsonOutput {
		fmt.Fprintln(errOut, red("Error: ")+err.Error())
		return
	}

	f := failure{Failed: true, Msg: err.Error()}
	var execErr *util.ExecutionError
	if errors.As(err, &execErr) {
		f.Msg = executionFailure{
			Msg:    fmt.Sprintf("Failed on line '%s'", execErr.Command),
			RC:     execErr.ExitCode,
			Stdout: execErr.Stdout,
			Stderr: execErr.Stderr,
		}
	}
	writeJSON(out, f)
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
