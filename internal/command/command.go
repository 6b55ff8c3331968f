// Package command runs external programs for the disk, sort and import tools.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/kriansa/shokz-sync/internal/log"
)

// Result holds the captured output of a finished process
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr joined, trimmed
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join([]string{r.Stdout, r.Stderr}, "\n"))
}

// Runner abstracts process execution so callers can be tested without
// touching real devices.
type Runner interface {
	// Run executes name with args and captures its output.
	// A non-zero exit returns both the Result and an error.
	Run(ctx context.Context, name string, args ...string) (*Result, error)

	// Stream executes name with args, forwarding its output to stdout and stderr.
	Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error

	// LookPath reports the resolved path of an executable
	LookPath(name string) (string, error)
}

// ExecRunner implements Runner with os/exec
type ExecRunner struct{}

// NewExecRunner creates a Runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and captures stdout and stderr separately
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	log.Debug("running command", "cmd", name, "args", strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: ExitCode(err),
	}
	if err != nil {
		log.Debug("command failed", "cmd", name, "exit", res.ExitCode, "error", err)
		return res, err
	}
	return res, nil
}

// Stream executes a command attached to the given writers
func (r *ExecRunner) Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	log.Debug("running command", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// LookPath resolves name against PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// IsNotFound reports whether err means the executable could not be located
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// ExitCode extracts the process exit status from err.
// Returns 0 for a nil error and -1 when the process never ran.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
