// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/kriansa/shokz-sync/internal/command"
)

// Call records a single invocation
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is the scripted outcome of a command
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err overrides the error returned, e.g. exec.ErrNotFound
	Err error
}

// ExitError mimics *exec.ExitError for a scripted non-zero exit
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the scripted exit status
func (e *ExitError) ExitCode() int {
	return e.Code
}

// NotFound returns an error equivalent to a missing executable
func NotFound(name string) error {
	return &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Runner answers commands from a table keyed by the exact command line,
// as rendered by Call.String. Unknown commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	missing   map[string]bool
	calls     []Call
}

var _ command.Runner = (*Runner)(nil)

// NewRunner creates an empty scripted runner
func NewRunner() *Runner {
	return &Runner{
		responses: map[string][]Response{},
		missing:   map[string]bool{},
	}
}

// On queues a response for a command line, e.g. "diskutil info /Volumes/X".
// Queued responses are consumed in order; the last one repeats.
func (r *Runner) On(cmdline string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = append(r.responses[cmdline], resp)
	return r
}

// Missing marks an executable as absent from PATH
func (r *Runner) Missing(name string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[name] = true
	return r
}

// Calls returns every recorded invocation
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsMatching returns recorded invocations whose command line starts with prefix
func (r *Runner) CallsMatching(prefix string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (r *Runner) respond(name string, args []string) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.calls = append(r.calls, call)

	if r.missing[name] {
		return Response{}, NotFound(name)
	}

	key := call.String()
	queue := r.responses[key]
	if len(queue) == 0 {
		return Response{}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[key] = queue[1:]
	}

	if resp.Err != nil {
		return resp, resp.Err
	}
	if resp.ExitCode != 0 {
		return resp, &ExitError{Code: resp.ExitCode}
	}
	return resp, nil
}

// Run implements command.Runner
func (r *Runner) Run(_ context.Context, name string, args ...string) (*command.Result, error) {
	resp, err := r.respond(name, args)
	res := &command.Result{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: command.ExitCode(err),
	}
	return res, err
}

// Stream implements command.Runner
func (r *Runner) Stream(_ context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	resp, err := r.respond(name, args)
	if stdout != nil {
		_, _ = io.WriteString(stdout, resp.Stdout)
	}
	if stderr != nil {
		_, _ = io.WriteString(stderr, resp.Stderr)
	}
	return err
}

// LookPath implements command.Runner
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[name] {
		return "", NotFound(name)
	}
	return "/usr/local/bin/" + name, nil
}
