// Package fileutil holds filesystem helpers shared by the strategies.
package fileutil

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/logging"
)

// RemoveQuietly deletes path and reports whether it is gone. Failures are
// logged at debug level and never returned: intermediate files are
// disposable.
func RemoveQuietly(fs afero.Fs, path string, log *logging.Logger) bool {
	if path == "" {
		return true
	}
	if err := fs.Remove(path); err != nil {
		if exists, _ := afero.Exists(fs, path); !exists {
			return true
		}
		if log != nil {
			log.Debug("cleanup failed", "path", path, "err", err)
		}
		return false
	}
	return true
}

// CleanStale removes regular files in dir older than maxAge and returns how
// many were removed.
func CleanStale(fs afero.Fs, dir string, maxAge time.Duration, now time.Time, log *logging.Logger) int {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, info := range infos {
		if info.IsDir() || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if RemoveQuietly(fs, filepath.Join(dir, info.Name()), log) {
			removed++
		}
	}
	return removed
}

// EnsureDirs creates every directory in dirs.
func EnsureDirs(fs afero.Fs, dirs ...string) error {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := fs.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
