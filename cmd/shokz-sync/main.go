package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kriansa/shokz-sync/internal/beets"
	"github.com/kriansa/shokz-sync/internal/command"
	"github.com/kriansa/shokz-sync/internal/config"
	"github.com/kriansa/shokz-sync/internal/console"
	"github.com/kriansa/shokz-sync/internal/deps"
	"github.com/kriansa/shokz-sync/internal/diskutil"
	"github.com/kriansa/shokz-sync/internal/fatsort"
	"github.com/kriansa/shokz-sync/internal/library"
	"github.com/kriansa/shokz-sync/internal/log"
	"github.com/kriansa/shokz-sync/internal/syncer"
	"github.com/kriansa/shokz-sync/internal/version"
)

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	a.sync = a.runSync

	if err := a.command().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// syncRequest is a fully resolved sync invocation
type syncRequest struct {
	Config        *config.Config
	DryRun        bool
	SkipTranscode bool
	Verbose       bool
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	sync   func(ctx context.Context, req syncRequest) error
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "shokz-sync",
		Usage:     "Organize and compress music on Shokz XTRAINERZ using beets, ffmpeg and fatsort",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mountpoint",
				Aliases: []string{"m"},
				Usage:   "Mount point of the Shokz device",
				Value:   config.DefaultMountpoint,
			},
			&cli.StringFlag{
				Name:    "bitrate",
				Aliases: []string{"b"},
				Usage:   "Target AAC bitrate for transcoding",
				Value:   config.DefaultBitrate,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Preview changes without modifying files",
			},
			&cli.BoolFlag{
				Name:    "skip-transcode",
				Aliases: []string{"no-convert"},
				Usage:   "Skip transcoding, only reorganize",
			},
			&cli.BoolFlag{
				Name:  "no-sudo",
				Usage: "Run fatsort without sudo",
			},
			&cli.StringFlag{
				Name:  "beets-config",
				Usage: "Beets configuration file path",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultConfigPath(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Verbose output",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Action: a.syncAction,
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Sync and organize music (default command)",
				Action: a.syncAction,
			},
			{
				Name:  "init-config",
				Usage: "Create default beets configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite existing config",
					},
				},
				Action: a.initConfig,
			},
			{
				Name:   "show-config",
				Usage:  "Display config template",
				Action: a.showConfig,
			},
		},
	}
}

// loadConfig reads the config file and layers CLI flags and defaults on top
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Only explicitly set flags override the file
	var mountpoint, bitrate string
	if cmd.IsSet("mountpoint") {
		mountpoint = cmd.String("mountpoint")
	}
	if cmd.IsSet("bitrate") {
		bitrate = cmd.String("bitrate")
	}
	cfg.Merge(mountpoint, bitrate, cmd.String("beets-config"), cmd.Bool("no-sudo"))
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) syncAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Fprintln(a.stdout, version.String())
		return nil
	}

	log.Setup(cmd.Bool("verbose"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return a.sync(ctx, syncRequest{
		Config:        cfg,
		DryRun:        cmd.Bool("dry-run"),
		SkipTranscode: cmd.Bool("skip-transcode"),
		Verbose:       cmd.Bool("verbose"),
	})
}

// runSync wires the real collaborators and runs the orchestrator
func (a *app) runSync(ctx context.Context, req syncRequest) error {
	cfg := req.Config
	log.Debug("starting sync",
		"mountpoint", cfg.Mountpoint,
		"bitrate", cfg.Bitrate,
		"beets_config", cfg.BeetsConfig,
		"dry_run", req.DryRun,
	)

	runner := command.NewExecRunner()
	disk := diskutil.NewClient(runner)

	o := syncer.New(syncer.Dependencies{
		Checker:    deps.NewChecker(runner, deps.DefaultTools),
		Resolver:   disk,
		Volumes:    disk,
		Reorderer:  fatsort.NewRunner(runner),
		Importer:   beets.NewImporter(runner, a.stdout, a.stderr),
		Configs:    beets.FileStore{},
		CountFiles: library.CountMusicFiles,
		Printer:    console.NewPrinter(a.stdout, a.stderr),
	}, syncer.Options{
		Mountpoint:  cfg.Mountpoint,
		BeetsConfig: cfg.BeetsConfig,
		Beets: beets.Params{
			Bitrate:     cfg.Bitrate,
			MaxBitrate:  cfg.MaxBitrate,
			LibraryPath: cfg.LibraryDB,
		},
		DryRun:        req.DryRun,
		SkipTranscode: req.SkipTranscode,
		Verbose:       req.Verbose,
		Elevated:      !cfg.NoSudo,
	})

	s, err := o.Run(ctx)
	log.Debug("sync finished", "stage", s.Current(), "stages", s.Completed())
	return err
}

func (a *app) initConfig(_ context.Context, cmd *cli.Command) error {
	log.Setup(cmd.Bool("verbose"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p := console.NewPrinter(a.stdout, a.stderr)
	path := cfg.BeetsConfig

	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		p.Error("Config already exists: %s", path)
		fmt.Fprintln(a.stdout, "\nUse --force to overwrite, or edit the file manually.")
		return fmt.Errorf("config already exists: %s", path)
	}

	p.Step("Creating beets configuration")
	_, err = beets.Create(path, beets.Params{
		Mountpoint:  cfg.Mountpoint,
		Bitrate:     cfg.Bitrate,
		MaxBitrate:  cfg.MaxBitrate,
		LibraryPath: cfg.LibraryDB,
	})
	if err != nil {
		p.Error("Failed to create config: %v", err)
		return err
	}

	p.Success("Config created: %s", path)
	fmt.Fprintln(a.stdout, "\nYou can now run: shokz-sync")
	return nil
}

func (a *app) showConfig(_ context.Context, _ *cli.Command) error {
	tmpl, err := beets.Template(config.DefaultBeetsConfigPath(), config.DefaultMountpoint)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, tmpl)
	return nil
}
