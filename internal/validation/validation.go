package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	// MinBitrate is the lowest accepted AAC bitrate in kbps
	MinBitrate = 32
	// MaxBitrate is the highest accepted AAC bitrate in kbps
	MaxBitrate = 320
)

// bitratePattern matches ffmpeg style bitrates in kbps, e.g. "96k"
var bitratePattern = regexp.MustCompile(`^([1-9][0-9]*)k$`)

// ValidateBitrate validates that a bitrate string meets all requirements:
// - Matches the ffmpeg kbps form (digits followed by "k")
// - Between 32k and 320k
func ValidateBitrate(bitrate string) error {
	m := bitratePattern.FindStringSubmatch(bitrate)
	if m == nil {
		return fmt.Errorf("bitrate must look like 96k, got %q", bitrate)
	}

	kbps, err := strconv.Atoi(m[1])
	if err != nil {
		return fmt.Errorf("bitrate %q: %w", bitrate, err)
	}

	if kbps < MinBitrate || kbps > MaxBitrate {
		return fmt.Errorf("bitrate must be between %dk and %dk", MinBitrate, MaxBitrate)
	}

	return nil
}

// ValidateMountpoint validates that a mountpoint is a clean absolute path
func ValidateMountpoint(path string) error {
	if path == "" {
		return fmt.Errorf("mountpoint is required")
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("mountpoint must be an absolute path, got %q", path)
	}

	if filepath.Clean(path) == "/" {
		return fmt.Errorf("mountpoint cannot be the filesystem root")
	}

	return nil
}
