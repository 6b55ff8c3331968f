// Package library inspects the music stored on the device.
package library

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/kriansa/shokz-sync/internal/log"
)

// musicExtensions are the file types counted as music, lowercase
var musicExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".aac":  true,
}

// IsMusicFile reports whether name has a music file extension
func IsMusicFile(name string) bool {
	return musicExtensions[strings.ToLower(filepath.Ext(name))]
}

// CountMusicFiles walks dir recursively and counts music files.
// Unreadable entries are skipped; a missing dir counts as zero.
func CountMusicFiles(dir string) int {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsMusicFile(d.Name()) {
			count++
		}
		return nil
	})
	if err != nil {
		log.Debug("music file count incomplete", "dir", dir, "error", err)
	}
	return count
}
