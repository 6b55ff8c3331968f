// Package fatsort sorts FAT32 directory tables on a raw device with fatsort.
package fatsort

import (
	"context"
	"fmt"
	"strings"

	"github.com/kriansa/shokz-sync/internal/command"
	"github.com/kriansa/shokz-sync/internal/diskutil"
	"github.com/kriansa/shokz-sync/internal/log"
)

// InstallHint tells the user how to get fatsort
const InstallHint = "brew install fatsort"

// ErrorKind classifies reorder failures
type ErrorKind int

const (
	// ToolMissing means fatsort (or sudo) was not found
	ToolMissing ErrorKind = iota
	// NonZeroExit means fatsort ran and failed
	NonZeroExit
)

func (k ErrorKind) String() string {
	if k == ToolMissing {
		return "tool missing"
	}
	return "non-zero exit"
}

// ReorderError is returned when fatsort could not sort the device
type ReorderError struct {
	Kind     ErrorKind
	Device   string
	ExitCode int
	// Output is the diagnostic text fatsort printed
	Output string
	Err    error
}

func (e *ReorderError) Error() string {
	if e.Kind == ToolMissing {
		return fmt.Sprintf("fatsort command not found; install it with: %s", InstallHint)
	}
	msg := fmt.Sprintf("fatsort failed with exit code %d", e.ExitCode)
	if e.Output != "" {
		msg += ":\n" + e.Output
	}
	return msg
}

func (e *ReorderError) Unwrap() error {
	return e.Err
}

// Runner invokes fatsort
type Runner struct {
	runner command.Runner
}

// NewRunner creates a fatsort runner
func NewRunner(runner command.Runner) *Runner {
	return &Runner{runner: runner}
}

// Reorder sorts directory entries in ascending name order on the raw device
// node. A buffered node is converted to its raw form before running, since
// fatsort must never touch the buffered device.
func (r *Runner) Reorder(ctx context.Context, deviceNode string, elevated bool) error {
	raw := deviceNode
	if !diskutil.IsRaw(deviceNode) {
		raw = diskutil.RawDeviceNode(deviceNode)
		log.Warn("reorder given a buffered device node, using raw node", "device", deviceNode, "raw", raw)
	}

	name, args := "fatsort", []string{"-o", "a", raw}
	if elevated {
		name, args = "sudo", append([]string{"fatsort"}, args...)
	}

	log.Debug("running fatsort", "cmd", name, "args", strings.Join(args, " "))

	res, err := r.runner.Run(ctx, name, args...)
	if err == nil {
		log.Debug("fatsort completed", "device", raw)
		return nil
	}

	if command.IsNotFound(err) {
		return &ReorderError{Kind: ToolMissing, Device: raw, ExitCode: -1, Err: err}
	}

	rerr := &ReorderError{Kind: NonZeroExit, Device: raw, ExitCode: command.ExitCode(err), Err: err}
	if res != nil {
		rerr.Output = strings.TrimSpace(res.Stderr)
		if rerr.Output == "" {
			rerr.Output = strings.TrimSpace(res.Stdout)
		}
	}
	return rerr
}
