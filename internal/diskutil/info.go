// Package diskutil resolves, mounts and unmounts volumes through the macOS
// diskutil command.
package diskutil

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// Keys reported by `diskutil info`
const (
	KeyDeviceNode = "Device Node"
	KeyMounted    = "Mounted"
	KeyMountPoint = "Mount Point"
	KeyFileSystem = "File System Personality"
)

// ErrParse is returned when disk info text contains no key/value pairs
var ErrParse = errors.New("no key/value pairs in disk info output")

// Info is the decoded output of `diskutil info`
type Info map[string]string

// DeviceNode returns the buffered device node, e.g. /dev/disk4s1
func (i Info) DeviceNode() string {
	return i[KeyDeviceNode]
}

// Mounted reports whether the volume is mounted according to diskutil
func (i Info) Mounted() bool {
	return i[KeyMounted] == "Yes"
}

// DecodeInfo parses `Key: Value` lines. Each line containing a colon is
// split once on its first colon and both sides are trimmed; lines without
// a colon are ignored. Later duplicates win.
//
// Example:
//
//	Device Node:              /dev/disk4s1
//	Volume Name:              XTRAINERZ
//	Mounted:                  Yes
//	Mount Point:              /Volumes/XTRAINERZ
//	File System Personality:  MS-DOS FAT32
func DecodeInfo(output string) (Info, error) {
	info := Info{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read disk info: %w", err)
	}

	if len(info) == 0 {
		return nil, ErrParse
	}

	return info, nil
}
