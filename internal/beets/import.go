package beets

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kriansa/shokz-sync/internal/command"
	"github.com/kriansa/shokz-sync/internal/log"
)

// ImportOptions controls a single `beet import` run
type ImportOptions struct {
	Mountpoint string
	// ConfigPath is passed with -c when set
	ConfigPath string
	// Pretend lists what would change without touching files
	Pretend bool
	// SkipTranscode disables the convert plugin for this run
	SkipTranscode bool
}

// ImportError is returned when beets exits unsuccessfully or cannot be started
type ImportError struct {
	ExitCode int
	Err      error
}

func (e *ImportError) Error() string {
	if command.IsNotFound(e.Err) {
		return "beet command not found"
	}
	return fmt.Sprintf("beets import failed: %v", e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Importer runs beets attached to the terminal
type Importer struct {
	runner command.Runner
	stdout io.Writer
	stderr io.Writer
}

// NewImporter creates an Importer that forwards beets output to stdout and stderr
func NewImporter(runner command.Runner, stdout, stderr io.Writer) *Importer {
	return &Importer{runner: runner, stdout: stdout, stderr: stderr}
}

// Args builds the beet argv for opts. plugins, when non-nil, overrides the
// plugin list from the configuration.
func Args(opts ImportOptions, plugins []string) []string {
	var args []string
	if opts.ConfigPath != "" {
		args = append(args, "-c", opts.ConfigPath)
	}
	if plugins != nil {
		args = append(args, "-p", strings.Join(plugins, ","))
	}
	args = append(args, "import")
	if opts.Pretend {
		args = append(args, "--pretend")
	}
	return append(args, "--quiet", opts.Mountpoint)
}

// pluginsWithoutConvert returns the configured plugins minus convert
func pluginsWithoutConvert(configPath string) ([]string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	plugins := make([]string, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		if p != "convert" {
			plugins = append(plugins, p)
		}
	}
	return plugins, nil
}

// Import runs `beet import` against the mountpoint
func (i *Importer) Import(ctx context.Context, opts ImportOptions) error {
	var plugins []string
	if opts.SkipTranscode && opts.ConfigPath != "" {
		var err error
		if plugins, err = pluginsWithoutConvert(opts.ConfigPath); err != nil {
			return &ImportError{ExitCode: -1, Err: fmt.Errorf("load plugin list: %w", err)}
		}
	}

	args := Args(opts, plugins)
	log.Info("running beets import", "cmd", "beet "+strings.Join(args, " "))

	if err := i.runner.Stream(ctx, i.stdout, i.stderr, "beet", args...); err != nil {
		return &ImportError{ExitCode: command.ExitCode(err), Err: err}
	}
	return nil
}
