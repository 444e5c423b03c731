package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// LocalExecutor runs nv as a child process on this host. Used when nvconf
// itself runs on the switch.
type LocalExecutor struct {
	nvPath string
}

// NewLocalExecutor returns an executor for the nv binary at nvPath.
// An empty path selects DefaultNVPath.
func NewLocalExecutor(nvPath string) *LocalExecutor {
	if nvPath == "" {
		nvPath = DefaultNVPath
	}
	return &LocalExecutor{nvPath: nvPath}
}

// Execute splits commandLine with shell quoting rules and runs nv with the
// resulting arguments. No shell is involved, so variables and globs are
// passed through literally.
func (e *LocalExecutor) Execute(ctx context.Context, commandLine string) (*Result, error) {
	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parsing command line %q: %w", commandLine, err)
	}

	cmd := exec.CommandContext(ctx, e.nvPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := &Result{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", e.nvPath, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}
