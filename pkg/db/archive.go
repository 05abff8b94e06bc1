package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultDevicePath is where a mounted Kindle exposes its vocabulary export.
const DefaultDevicePath = "/Volumes/Kindle/system/vocabulary/vocab.db"

// ArchiveName returns the file name used for the export archived on day.
func ArchiveName(day time.Time) string {
	return fmt.Sprintf("vocab_%s.db", day.Format("2006-01-02"))
}

// ArchiveExport copies the export at src into dir as vocab_<date>.db and returns
// the archived path. When src cannot be read but an archive for the same day
// already exists, that archive is returned instead.
func ArchiveExport(src, dir string, now time.Time) (string, error) {
	dest := filepath.Join(dir, ArchiveName(now))

	if err := copyExport(src, dir, dest); err != nil {
		if _, statErr := os.Stat(dest); statErr == nil {
			return dest, nil
		}
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return dest, nil
}

func copyExport(src, dir, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := atomic.WriteFile(dest, f); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dest, err)
	}
	return nil
}
