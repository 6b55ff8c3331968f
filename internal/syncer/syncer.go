// Package syncer sequences a device sync: import, unmount, reorder, remount.
//
// Unmount, reorder and remount act on a physical device and cannot be undone,
// so each stage is entered only after its predecessor succeeded and every
// failure leaves the device mounted whenever that is still possible.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kriansa/shokz-sync/internal/beets"
	"github.com/kriansa/shokz-sync/internal/console"
	"github.com/kriansa/shokz-sync/internal/deps"
	"github.com/kriansa/shokz-sync/internal/diskutil"
	"github.com/kriansa/shokz-sync/internal/log"
)

// ErrNotMounted is returned when the target mountpoint is absent or unmounted
var ErrNotMounted = errors.New("mountpoint not found or not mounted")

// StageError reports the stage a run was trying to enter when it halted
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sync halted before %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// DependencyChecker verifies required tools
type DependencyChecker interface {
	Verify(ctx context.Context) (deps.Status, error)
	Tools() []deps.Tool
}

// DeviceResolver maps a mountpoint to its device nodes
type DeviceResolver interface {
	Resolve(ctx context.Context, mountpoint string) (*diskutil.Device, error)
}

// VolumeController mounts and unmounts the device
type VolumeController interface {
	IsMounted(ctx context.Context, mountpoint string) bool
	Unmount(ctx context.Context, mountpoint string) error
	Mount(ctx context.Context, deviceNode string) error
}

// Reorderer sorts the FAT directory table on a raw device
type Reorderer interface {
	Reorder(ctx context.Context, rawDeviceNode string, elevated bool) error
}

// Importer runs the library manager import
type Importer interface {
	Import(ctx context.Context, opts beets.ImportOptions) error
}

// ConfigStore checks and creates the library manager configuration
type ConfigStore interface {
	Verify(path string) bool
	Create(path string, p beets.Params) error
}

// Dependencies holds the collaborators of an Orchestrator
type Dependencies struct {
	Checker    DependencyChecker
	Resolver   DeviceResolver
	Volumes    VolumeController
	Reorderer  Reorderer
	Importer   Importer
	Configs    ConfigStore
	CountFiles func(dir string) int
	Printer    *console.Printer
}

// Options are the per-run settings
type Options struct {
	Mountpoint string
	// BeetsConfig is the library manager configuration path
	BeetsConfig string
	// Beets holds the values used if the configuration must be created
	Beets         beets.Params
	DryRun        bool
	SkipTranscode bool
	Verbose       bool
	// Elevated runs the reorder tool through sudo
	Elevated bool
}

// Orchestrator runs the sync state machine
type Orchestrator struct {
	deps Dependencies
	opts Options
}

// New creates an Orchestrator
func New(d Dependencies, opts Options) *Orchestrator {
	return &Orchestrator{deps: d, opts: opts}
}

// halt records a failure while trying to enter stage
func (o *Orchestrator) halt(s *Session, stage Stage, err error) error {
	s.fail()
	log.Debug("sync halted", "stage", stage, "session", s.Current(), "error", err)
	return &StageError{Stage: stage, Err: err}
}

// enter advances the session. A refused transition is a programming error
// and halts the run before anything else touches the device.
func (o *Orchestrator) enter(s *Session, stage Stage) error {
	if err := s.advance(stage); err != nil {
		return o.halt(s, stage, err)
	}
	log.Debug("stage entered", "stage", stage)
	return nil
}

// Run executes a sync. The returned session is never nil.
func (o *Orchestrator) Run(ctx context.Context) (*Session, error) {
	s := NewSession(o.opts.DryRun)
	p := o.deps.Printer
	mp := o.opts.Mountpoint

	// Dependencies. Nothing has been touched yet.
	p.Step("Checking dependencies")
	status, err := o.deps.Checker.Verify(ctx)
	if o.opts.Verbose {
		p.Dependencies(o.deps.Checker.Tools(), status)
	}
	if err != nil {
		var missing *deps.MissingError
		if errors.As(err, &missing) {
			p.MissingDependencies(missing.Tools)
		}
		return s, o.halt(s, StageDependenciesVerified, err)
	}
	if err := o.enter(s, StageDependenciesVerified); err != nil {
		return s, err
	}
	p.Success("All dependencies available")

	// Volume
	if !o.deps.Volumes.IsMounted(ctx, mp) {
		p.Error("Mountpoint not found or not mounted: %s", mp)
		p.Info("Connect your Shokz XTRAINERZ device and try again.")
		return s, o.halt(s, StageVolumeFound, fmt.Errorf("%s: %w", mp, ErrNotMounted))
	}
	if err := o.enter(s, StageVolumeFound); err != nil {
		return s, err
	}
	p.Success("Found mounted volume: %s", mp)

	// Config
	if err := o.ensureConfig(); err != nil {
		return s, o.halt(s, StageConfigReady, err)
	}
	if err := o.enter(s, StageConfigReady); err != nil {
		return s, err
	}

	filesBefore := o.deps.CountFiles(mp)
	p.Info("Music files on device: %d", filesBefore)

	// Import, on the still mounted volume
	p.Step("Running beets import to organize and clean library")
	if o.opts.DryRun {
		p.Info("DRY RUN MODE - no changes will be made")
	}
	err = o.deps.Importer.Import(ctx, beets.ImportOptions{
		Mountpoint:    mp,
		ConfigPath:    o.opts.BeetsConfig,
		Pretend:       o.opts.DryRun,
		SkipTranscode: o.opts.SkipTranscode,
	})
	if err != nil {
		p.Error("Beets import failed: %v", err)
		return s, o.halt(s, StageImported, err)
	}
	if err := o.enter(s, StageImported); err != nil {
		return s, err
	}
	p.Success("Beets import completed")

	if s.DryRun {
		p.Info("Dry run complete - no fatsort performed")
		return s, nil
	}

	// Resolve the device while it is still mounted; it cannot be resolved
	// after unmounting.
	p.Step("Preparing to run fatsort")
	dev, err := o.deps.Resolver.Resolve(ctx, mp)
	if err != nil {
		p.Error("Failed to get device info: %v", err)
		return s, o.halt(s, StageUnmounted, err)
	}
	p.Info("Device node: %s", dev.Node)
	p.Info("Raw device: %s", dev.RawNode)

	// Unmount
	p.Step("Unmounting volume")
	if err := o.deps.Volumes.Unmount(ctx, mp); err != nil {
		p.Error("%v", err)
		var unmountErr *diskutil.UnmountError
		if errors.As(err, &unmountErr) && unmountErr.Kind == diskutil.UnmountBusy {
			p.Info("Close any Finder windows or apps accessing the volume and try again.")
		}
		return s, o.halt(s, StageUnmounted, err)
	}
	if err := o.enter(s, StageUnmounted); err != nil {
		return s, err
	}
	p.Success("Volume unmounted")

	// Reorder, on the unmounted raw device
	p.Step("Running fatsort to optimize playback order")
	if o.opts.Elevated {
		p.Info("This may take a moment and requires sudo access...")
	}
	if err := o.deps.Reorderer.Reorder(ctx, dev.RawNode, o.opts.Elevated); err != nil {
		p.Error("Fatsort failed: %v", err)
		o.recoverMount(ctx, dev.Node)
		return s, o.halt(s, StageReordered, err)
	}
	if err := o.enter(s, StageReordered); err != nil {
		return s, err
	}
	p.Success("Fatsort completed")

	// Remount
	p.Step("Remounting volume")
	if err := o.deps.Volumes.Mount(ctx, dev.Node); err != nil {
		p.Error("Failed to remount: %v", err)
		p.Info("You may need to manually remount or reconnect the device.")
		return s, o.halt(s, StageRemounted, err)
	}
	if err := o.enter(s, StageRemounted); err != nil {
		return s, err
	}
	p.Success("Volume remounted at %s", mp)

	if err := o.enter(s, StageDone); err != nil {
		return s, err
	}
	p.Summary(console.Summary{
		Mountpoint:  mp,
		DeviceNode:  dev.Node,
		FilesBefore: filesBefore,
		FilesAfter:  o.deps.CountFiles(mp),
	})
	return s, nil
}

// ensureConfig creates the library manager configuration if none is usable
func (o *Orchestrator) ensureConfig() error {
	p := o.deps.Printer
	path := o.opts.BeetsConfig

	if o.deps.Configs.Verify(path) {
		p.Success("Using config: %s", path)
		return nil
	}

	p.Info("No valid beets config found at %s", path)
	p.Info("Creating default configuration...")

	params := o.opts.Beets
	params.Mountpoint = o.opts.Mountpoint
	if err := o.deps.Configs.Create(path, params); err != nil {
		p.Error("Failed to create config: %v", err)
		return fmt.Errorf("create beets config: %w", err)
	}

	p.Success("Config created: %s", path)
	return nil
}

// recoverMount tries once to remount the device after a failed reorder so
// the user is not left without access to it. Its own failure is only
// logged; the reorder failure is what gets reported.
//
// TODO: look the device up by volume UUID before remounting in case the
// disk identifier changed while the volume was unmounted.
func (o *Orchestrator) recoverMount(ctx context.Context, deviceNode string) {
	log.Warn("attempting remount after failed reorder", "device", deviceNode)
	if err := o.deps.Volumes.Mount(ctx, deviceNode); err != nil {
		log.Warn("remount after failed reorder failed", "device", deviceNode, "error", err)
		return
	}
	o.deps.Printer.Info("Volume remounted after failure")
}
