package syncer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriansa/shokz-sync/internal/beets"
	"github.com/kriansa/shokz-sync/internal/console"
	"github.com/kriansa/shokz-sync/internal/deps"
	"github.com/kriansa/shokz-sync/internal/diskutil"
	"github.com/kriansa/shokz-sync/internal/fatsort"
	"github.com/kriansa/shokz-sync/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup(false)
	os.Exit(m.Run())
}

const (
	testMountpoint = "/Volumes/XTRAINERZ"
	testConfig     = "/home/u/.config/beets/config.yaml"
	testNode       = "/dev/disk4s1"
	testRawNode    = "/dev/rdisk4s1"
)

// recorder collects collaborator calls in order and tracks mount state
type recorder struct {
	events  []string
	mounted bool
	t       *testing.T
}

func (r *recorder) record(event string) {
	r.events = append(r.events, event)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakeChecker struct {
	err error
}

func (f *fakeChecker) Verify(context.Context) (deps.Status, error) {
	return deps.Status{"beet": f.err == nil}, f.err
}

func (f *fakeChecker) Tools() []deps.Tool {
	return deps.DefaultTools[:1]
}

type fakeResolver struct {
	rec *recorder
	err error
}

func (f *fakeResolver) Resolve(context.Context, string) (*diskutil.Device, error) {
	f.rec.record("resolve")
	if f.err != nil {
		return nil, f.err
	}
	return &diskutil.Device{Node: testNode, RawNode: testRawNode}, nil
}

type fakeVolumes struct {
	rec        *recorder
	unmountErr error
	mountErrs  []error
	mountArgs  []string
}

func (f *fakeVolumes) IsMounted(context.Context, string) bool {
	f.rec.record("is-mounted")
	return f.rec.mounted
}

func (f *fakeVolumes) Unmount(context.Context, string) error {
	f.rec.record("unmount")
	if f.unmountErr != nil {
		return f.unmountErr
	}
	f.rec.mounted = false
	return nil
}

func (f *fakeVolumes) Mount(_ context.Context, node string) error {
	f.rec.record("mount")
	f.mountArgs = append(f.mountArgs, node)
	if len(f.mountErrs) > 0 {
		err := f.mountErrs[0]
		f.mountErrs = f.mountErrs[1:]
		if err != nil {
			return err
		}
	}
	f.rec.mounted = true
	return nil
}

type fakeReorderer struct {
	rec  *recorder
	err  error
	args []string
}

func (f *fakeReorderer) Reorder(_ context.Context, node string, _ bool) error {
	f.rec.record("reorder")
	f.args = append(f.args, node)
	assert.False(f.rec.t, f.rec.mounted, "reorder must never run while mounted")
	return f.err
}

type fakeImporter struct {
	rec  *recorder
	err  error
	opts []beets.ImportOptions
}

func (f *fakeImporter) Import(_ context.Context, opts beets.ImportOptions) error {
	f.rec.record("import")
	f.opts = append(f.opts, opts)
	assert.True(f.rec.t, f.rec.mounted, "import must never run while unmounted")
	return f.err
}

type fakeConfigs struct {
	rec     *recorder
	valid   bool
	err     error
	created []beets.Params
}

func (f *fakeConfigs) Verify(string) bool {
	return f.valid
}

func (f *fakeConfigs) Create(_ string, p beets.Params) error {
	f.rec.record("create-config")
	f.created = append(f.created, p)
	if f.err != nil {
		return f.err
	}
	f.valid = true
	return nil
}

type harness struct {
	rec       *recorder
	checker   *fakeChecker
	resolver  *fakeResolver
	volumes   *fakeVolumes
	reorderer *fakeReorderer
	importer  *fakeImporter
	configs   *fakeConfigs
	out       bytes.Buffer
	errOut    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	rec := &recorder{mounted: true, t: t}
	return &harness{
		rec:       rec,
		checker:   &fakeChecker{},
		resolver:  &fakeResolver{rec: rec},
		volumes:   &fakeVolumes{rec: rec},
		reorderer: &fakeReorderer{rec: rec},
		importer:  &fakeImporter{rec: rec},
		configs:   &fakeConfigs{rec: rec, valid: true},
	}
}

func (h *harness) run(opts Options) (*Session, error) {
	if opts.Mountpoint == "" {
		opts.Mountpoint = testMountpoint
	}
	if opts.BeetsConfig == "" {
		opts.BeetsConfig = testConfig
	}
	o := New(Dependencies{
		Checker:    h.checker,
		Resolver:   h.resolver,
		Volumes:    h.volumes,
		Reorderer:  h.reorderer,
		Importer:   h.importer,
		Configs:    h.configs,
		CountFiles: func(string) int { return 7 },
		Printer:    console.NewPrinter(&h.out, &h.errOut),
	}, opts)
	return o.Run(context.Background())
}

func TestRunCompleteSync(t *testing.T) {
	h := newHarness(t)
	h.configs.valid = false

	s, err := h.run(Options{Elevated: true, Beets: beets.Params{Bitrate: "128k"}})
	require.NoError(t, err)

	assert.Equal(t, StageDone, s.Current())
	assert.True(t, s.Succeeded())
	assert.Equal(t, []Stage{
		StageDependenciesVerified,
		StageVolumeFound,
		StageConfigReady,
		StageImported,
		StageUnmounted,
		StageReordered,
		StageRemounted,
		StageDone,
	}, s.Completed())

	assert.Equal(t, []string{"is-mounted", "create-config", "import", "resolve", "unmount", "reorder", "mount"}, h.rec.events)
	require.Len(t, h.configs.created, 1)
	assert.Equal(t, testMountpoint, h.configs.created[0].Mountpoint)
	assert.Equal(t, "128k", h.configs.created[0].Bitrate)
	assert.Equal(t, []string{testRawNode}, h.reorderer.args)
	assert.Equal(t, []string{testNode}, h.volumes.mountArgs)
	assert.False(t, h.importer.opts[0].Pretend)
	assert.Contains(t, h.out.String(), "Sync complete!")
}

func TestRunDryRunStopsAfterImport(t *testing.T) {
	h := newHarness(t)

	s, err := h.run(Options{DryRun: true, SkipTranscode: true})
	require.NoError(t, err)

	assert.Equal(t, StageImported, s.Current())
	assert.True(t, s.Succeeded())
	assert.False(t, s.Reached(StageUnmounted))

	require.Len(t, h.importer.opts, 1)
	assert.True(t, h.importer.opts[0].Pretend)
	assert.True(t, h.importer.opts[0].SkipTranscode)

	assert.Zero(t, h.rec.count("unmount"))
	assert.Zero(t, h.rec.count("reorder"))
	assert.Zero(t, h.rec.count("mount"))
	assert.Zero(t, h.rec.count("resolve"))
	assert.Contains(t, h.out.String(), "DRY RUN MODE")
}

func TestRunMissingDependencies(t *testing.T) {
	h := newHarness(t)
	h.checker.err = deps.NewMissingError(deps.DefaultTools[3:4])

	s, err := h.run(Options{Verbose: true})

	var missing *deps.MissingError
	require.ErrorAs(t, err, &missing)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDependenciesVerified, stageErr.Stage)
	assert.Contains(t, err.Error(), "fatsort not available (install: brew install fatsort)")

	assert.Equal(t, StageInit, s.Current())
	assert.Empty(t, h.rec.events)
	assert.Contains(t, h.errOut.String(), "brew install fatsort")
	assert.Contains(t, h.out.String(), "Checking dependencies...")
}

func TestRunNotMounted(t *testing.T) {
	h := newHarness(t)
	h.rec.mounted = false

	s, err := h.run(Options{})
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.Equal(t, StageDependenciesVerified, s.Current())
	assert.Equal(t, []string{"is-mounted"}, h.rec.events)
	assert.Contains(t, h.errOut.String(), "Mountpoint not found or not mounted")
}

func TestRunConfigCreationFails(t *testing.T) {
	h := newHarness(t)
	h.configs.valid = false
	h.configs.err = errors.New("permission denied")

	s, err := h.run(Options{})
	require.Error(t, err)
	assert.Equal(t, StageFailed, s.Current())
	assert.Zero(t, h.rec.count("import"))
}

func TestRunImportFailureLeavesDeviceUntouched(t *testing.T) {
	h := newHarness(t)
	h.importer.err = &beets.ImportError{ExitCode: 1, Err: errors.New("exit status 1")}

	s, err := h.run(Options{})

	var importErr *beets.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, StageFailed, s.Current())
	assert.True(t, s.Reached(StageConfigReady))
	assert.False(t, s.Reached(StageImported))
	assert.Equal(t, []string{"is-mounted", "import"}, h.rec.events)
	assert.True(t, h.rec.mounted)
}

func TestRunResolutionFailure(t *testing.T) {
	h := newHarness(t)
	h.resolver.err = &diskutil.ResolutionError{Mountpoint: testMountpoint, Reason: "no device node reported"}

	s, err := h.run(Options{})

	var resErr *diskutil.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, StageFailed, s.Current())
	assert.Zero(t, h.rec.count("unmount"))
	assert.True(t, h.rec.mounted)
}

func TestRunUnmountFailures(t *testing.T) {
	tests := []struct {
		name     string
		kind     diskutil.UnmountKind
		wantHint bool
	}{
		{"busy", diskutil.UnmountBusy, true},
		{"generic", diskutil.UnmountOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.volumes.unmountErr = &diskutil.UnmountError{Mountpoint: testMountpoint, Kind: tt.kind}

			s, err := h.run(Options{})

			var unmountErr *diskutil.UnmountError
			require.ErrorAs(t, err, &unmountErr)
			assert.Equal(t, tt.kind, unmountErr.Kind)
			assert.Equal(t, StageFailed, s.Current())

			// no recovery needed, nothing after unmount runs
			assert.Zero(t, h.rec.count("reorder"))
			assert.Zero(t, h.rec.count("mount"))

			if tt.wantHint {
				assert.Contains(t, h.out.String(), "Close any Finder windows")
			} else {
				assert.NotContains(t, h.out.String(), "Close any Finder windows")
			}
		})
	}
}

func TestRunReorderFailureRemountsOnce(t *testing.T) {
	tests := []struct {
		name        string
		remountErr  error
		wantMounted bool
		wantWarning bool
	}{
		{"recovery remount succeeds", nil, true, false},
		{"recovery remount fails and is swallowed", &diskutil.MountError{DeviceNode: testNode}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			log.SetOutput(&logs)
			t.Cleanup(func() { log.SetOutput(os.Stderr) })

			h := newHarness(t)
			h.reorderer.err = &fatsort.ReorderError{Kind: fatsort.NonZeroExit, ExitCode: 1, Output: "bad"}
			h.volumes.mountErrs = []error{tt.remountErr}

			s, err := h.run(Options{})

			var reorderErr *fatsort.ReorderError
			require.ErrorAs(t, err, &reorderErr, "the reorder failure is reported, not the remount")
			var mountErr *diskutil.MountError
			assert.False(t, errors.As(err, &mountErr))

			assert.Equal(t, StageFailed, s.Current())
			assert.True(t, s.Reached(StageUnmounted))
			assert.False(t, s.Reached(StageReordered))

			assert.Equal(t, 1, h.rec.count("mount"))
			assert.Equal(t, []string{testNode}, h.volumes.mountArgs, "remount uses the original device node")
			assert.Equal(t, tt.wantMounted, h.rec.mounted)

			assert.Contains(t, logs.String(), `level=warning msg="attempting remount after failed reorder"`)
			if tt.wantWarning {
				assert.Contains(t, logs.String(), `level=warning msg="remount after failed reorder failed"`)
				assert.Contains(t, logs.String(), "device="+testNode)
			} else {
				assert.NotContains(t, logs.String(), "remount after failed reorder failed")
			}
		})
	}
}

func TestRunRemountFailure(t *testing.T) {
	h := newHarness(t)
	h.volumes.mountErrs = []error{&diskutil.MountError{DeviceNode: testNode, Output: "failed"}}

	s, err := h.run(Options{})

	var mountErr *diskutil.MountError
	require.ErrorAs(t, err, &mountErr)
	var reorderErr *fatsort.ReorderError
	assert.False(t, errors.As(err, &reorderErr))

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageRemounted, stageErr.Stage)
	assert.Equal(t, StageFailed, s.Current())
	assert.True(t, s.Reached(StageReordered))

	assert.Equal(t, 1, h.rec.count("reorder"))
	assert.Equal(t, 1, h.rec.count("unmount"))
	assert.Equal(t, 1, h.rec.count("mount"))
	assert.Contains(t, h.out.String(), "manually remount or reconnect")
}
