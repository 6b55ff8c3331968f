// Package deps checks that the external tools a sync needs are installed.
package deps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kriansa/shokz-sync/internal/command"
	"github.com/kriansa/shokz-sync/internal/log"
)

// DefaultCheckTimeout bounds how long a tool's check command may run
const DefaultCheckTimeout = 5 * time.Second

// Tool describes one required external command
type Tool struct {
	// Command is the executable name looked up on PATH
	Command string
	// Name is the human readable name
	Name string
	// Install is the hint shown when the tool is missing
	Install string
	// Check is the argv run to prove the tool can be launched
	Check []string
}

// DefaultTools is the set of tools a sync requires
var DefaultTools = []Tool{
	{Command: "beet", Name: "beets", Install: "brew install beets", Check: []string{"beet", "version"}},
	{Command: "ffmpeg", Name: "ffmpeg", Install: "brew install ffmpeg", Check: []string{"ffmpeg", "-version"}},
	{Command: "ffprobe", Name: "ffprobe (part of ffmpeg)", Install: "brew install ffmpeg", Check: []string{"ffprobe", "-version"}},
	{Command: "fatsort", Name: "fatsort", Install: "brew install fatsort", Check: []string{"fatsort", "--version"}},
	{Command: "diskutil", Name: "diskutil", Install: "Built-in to macOS", Check: []string{"diskutil", "list"}},
}

// Status maps a tool command to whether it is usable. It is computed fresh
// on every check.
type Status map[string]bool

// Missing returns the commands that are not available, in tool order
func (s Status) Missing(tools []Tool) []Tool {
	var missing []Tool
	for _, t := range tools {
		if !s[t.Command] {
			missing = append(missing, t)
		}
	}
	return missing
}

// MissingError is returned when one or more required tools are unavailable.
// Its message carries one line per tool with the install hint.
type MissingError struct {
	Tools []Tool
	errs  *multierror.Error
}

// NewMissingError builds the error for the given unavailable tools
func NewMissingError(tools []Tool) *MissingError {
	var errs *multierror.Error
	for _, t := range tools {
		errs = multierror.Append(errs, fmt.Errorf("%s not available (install: %s)", t.Name, t.Install))
	}
	if errs != nil {
		errs.ErrorFormat = formatMissing
	}
	return &MissingError{Tools: tools, errs: errs}
}

func formatMissing(errs []error) string {
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, "missing required dependencies:")
	for _, err := range errs {
		lines = append(lines, "  - "+err.Error())
	}
	return strings.Join(lines, "\n")
}

func (e *MissingError) Error() string {
	if e.errs == nil {
		return "missing required dependencies"
	}
	return e.errs.Error()
}

func (e *MissingError) Unwrap() error {
	if e.errs == nil {
		return nil
	}
	return e.errs
}

// Checker verifies a configured set of tools
type Checker struct {
	tools   []Tool
	runner  command.Runner
	timeout time.Duration
}

// NewChecker creates a Checker for the given tools
func NewChecker(runner command.Runner, tools []Tool) *Checker {
	return &Checker{
		tools:   tools,
		runner:  runner,
		timeout: DefaultCheckTimeout,
	}
}

// Tools returns the tools this checker verifies
func (c *Checker) Tools() []Tool {
	return c.tools
}

// Check probes every tool. A tool is available when it is on PATH and its
// check command starts and finishes within the timeout; the check command's
// exit status is not considered.
func (c *Checker) Check(ctx context.Context) Status {
	status := make(Status, len(c.tools))
	for _, t := range c.tools {
		status[t.Command] = c.works(ctx, t)
	}
	return status
}

func (c *Checker) works(ctx context.Context, t Tool) bool {
	if _, err := c.runner.LookPath(t.Command); err != nil {
		log.Debug("tool not on PATH", "tool", t.Command)
		return false
	}
	if len(t.Check) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, t.Check[0], t.Check[1:]...)
	if err != nil && (command.IsNotFound(err) || ctx.Err() != nil) {
		log.Debug("tool check failed", "tool", t.Command, "error", err)
		return false
	}
	return true
}

// Verify checks every tool and returns a *MissingError if any is unavailable
func (c *Checker) Verify(ctx context.Context) (Status, error) {
	status := c.Check(ctx)

	missing := status.Missing(c.tools)
	if len(missing) == 0 {
		return status, nil
	}

	return status, NewMissingError(missing)
}

// QuickInstall combines the Homebrew hints of tools into a single command.
// Tools without a brew hint are skipped; the result is empty if none remain.
func QuickInstall(tools []Tool) string {
	seen := map[string]bool{}
	var pkgs []string
	for _, t := range tools {
		pkg, ok := strings.CutPrefix(t.Install, "brew install ")
		if !ok || seen[pkg] {
			continue
		}
		seen[pkg] = true
		pkgs = append(pkgs, pkg)
	}
	if len(pkgs) == 0 {
		return ""
	}
	return "brew install " + strings.Join(pkgs, " ")
}
