package diskutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kriansa/shokz-sync/internal/command"
	"github.com/kriansa/shokz-sync/internal/log"
)

const (
	diskPrefix    = "/dev/disk"
	rawDiskPrefix = "/dev/rdisk"
)

// Device holds the buffered and raw device nodes backing a mountpoint
type Device struct {
	Node    string
	RawNode string
}

// Volume is the state of a mountpoint as reported by the OS. It is never
// cached; query it again when you need it.
type Volume struct {
	Mountpoint string
	Device     *Device
	Mounted    bool
}

// RawDeviceNode converts /dev/diskNsM to /dev/rdiskNsM.
// Nodes that do not start with /dev/disk, including raw ones, are returned
// unchanged, so applying it twice is the same as applying it once.
func RawDeviceNode(node string) string {
	if rest, ok := strings.CutPrefix(node, diskPrefix); ok {
		return rawDiskPrefix + rest
	}
	return node
}

// IsRaw reports whether node is an unbuffered device node
func IsRaw(node string) bool {
	return strings.HasPrefix(node, rawDiskPrefix)
}

// Client talks to diskutil
type Client struct {
	runner command.Runner
}

// NewClient creates a diskutil client using the given command runner
func NewClient(runner command.Runner) *Client {
	return &Client{runner: runner}
}

// diskutil runs a diskutil subcommand
func (c *Client) diskutil(ctx context.Context, args ...string) (*command.Result, error) {
	res, err := c.runner.Run(ctx, "diskutil", args...)
	if err != nil {
		return res, fmt.Errorf("diskutil %s: %w", strings.Join(args, " "), err)
	}
	return res, nil
}

// Info queries and decodes `diskutil info` for a mountpoint or device
func (c *Client) Info(ctx context.Context, target string) (Info, error) {
	res, err := c.diskutil(ctx, "info", target)
	if err != nil {
		return nil, err
	}
	return DecodeInfo(res.Stdout)
}

// Resolve maps a mountpoint to its device node and raw device node
func (c *Client) Resolve(ctx context.Context, mountpoint string) (*Device, error) {
	log.Debug("resolving device", "mountpoint", mountpoint)

	info, err := c.Info(ctx, mountpoint)
	if err != nil {
		if errors.Is(err, ErrParse) {
			return nil, &ResolutionError{Mountpoint: mountpoint, Reason: "unparseable disk info", Err: err}
		}
		return nil, &ResolutionError{Mountpoint: mountpoint, Reason: "disk info query failed", Err: err}
	}

	node := info.DeviceNode()
	if node == "" {
		return nil, &ResolutionError{Mountpoint: mountpoint, Reason: "no device node reported"}
	}

	dev := &Device{Node: node, RawNode: RawDeviceNode(node)}
	log.Debug("device resolved", "mountpoint", mountpoint, "device", dev.Node, "raw", dev.RawNode)
	return dev, nil
}

// Inspect reports the current state of a mountpoint without failing.
// Device is nil when no device node could be resolved.
func (c *Client) Inspect(ctx context.Context, mountpoint string) *Volume {
	vol := &Volume{Mountpoint: mountpoint}
	if _, err := os.Stat(mountpoint); err != nil {
		return vol
	}

	info, err := c.Info(ctx, mountpoint)
	if err != nil {
		log.Debug("disk info unavailable", "mountpoint", mountpoint, "error", err)
		return vol
	}

	vol.Mounted = info.Mounted()
	if node := info.DeviceNode(); node != "" {
		vol.Device = &Device{Node: node, RawNode: RawDeviceNode(node)}
	}
	return vol
}

// IsMounted reports whether mountpoint exists and diskutil says it is mounted.
// A missing path or failing query is a negative answer, not an error.
func (c *Client) IsMounted(ctx context.Context, mountpoint string) bool {
	return c.Inspect(ctx, mountpoint).Mounted
}

// Unmount unmounts the volume at mountpoint. Success requires diskutil to
// print a confirmation containing "unmounted"; the exit status alone is not
// trusted.
func (c *Client) Unmount(ctx context.Context, mountpoint string) error {
	log.Debug("unmounting", "mountpoint", mountpoint)

	res, err := c.diskutil(ctx, "unmount", mountpoint)
	output := res.Output()

	if err == nil && !strings.Contains(strings.ToLower(res.Stdout), "unmounted") {
		err = errors.New("no unmount confirmation")
	}
	if err != nil {
		kind := UnmountOther
		if strings.Contains(strings.ToLower(output), "busy") {
			kind = UnmountBusy
		}
		return &UnmountError{Mountpoint: mountpoint, Kind: kind, Output: output, Err: err}
	}

	log.Debug("unmounted successfully", "mountpoint", mountpoint)
	return nil
}

// Mount mounts the volume on deviceNode. Success requires diskutil to print
// a confirmation containing "mounted".
func (c *Client) Mount(ctx context.Context, deviceNode string) error {
	log.Debug("mounting", "device", deviceNode)

	res, err := c.diskutil(ctx, "mount", deviceNode)
	if err != nil {
		return &MountError{DeviceNode: deviceNode, Output: res.Output(), Err: err}
	}
	if !strings.Contains(strings.ToLower(res.Stdout), "mounted") {
		return &MountError{DeviceNode: deviceNode, Output: res.Output()}
	}

	log.Debug("mounted successfully", "device", deviceNode)
	return nil
}
