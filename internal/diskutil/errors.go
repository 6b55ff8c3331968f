package diskutil

import "fmt"

// ResolutionError is returned when a mountpoint cannot be mapped to a device node
type ResolutionError struct {
	Mountpoint string
	Reason     string
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve device for %s: %s: %v", e.Mountpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve device for %s: %s", e.Mountpoint, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// UnmountKind classifies unmount failures
type UnmountKind int

const (
	// UnmountOther is any failure that is not a busy resource
	UnmountOther UnmountKind = iota
	// UnmountBusy means another process holds the volume open
	UnmountBusy
)

func (k UnmountKind) String() string {
	if k == UnmountBusy {
		return "busy"
	}
	return "other"
}

// UnmountError is returned when diskutil does not confirm an unmount
type UnmountError struct {
	Mountpoint string
	Kind       UnmountKind
	// Output is the text diskutil printed
	Output string
	Err    error
}

func (e *UnmountError) Error() string {
	if e.Kind == UnmountBusy {
		return fmt.Sprintf("cannot unmount %s: resource is busy", e.Mountpoint)
	}
	if e.Err != nil {
		return fmt.Sprintf("unmount %s: %v (output: %q)", e.Mountpoint, e.Err, e.Output)
	}
	return fmt.Sprintf("unmount %s may have failed (output: %q)", e.Mountpoint, e.Output)
}

func (e *UnmountError) Unwrap() error {
	return e.Err
}

// MountError is returned when diskutil does not confirm a mount
type MountError struct {
	DeviceNode string
	Output     string
	Err        error
}

func (e *MountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mount %s: %v (output: %q)", e.DeviceNode, e.Err, e.Output)
	}
	return fmt.Sprintf("mount %s may have failed (output: %q)", e.DeviceNode, e.Output)
}

func (e *MountError) Unwrap() error {
	return e.Err
}
