package engine

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// preserveMetadata copies the source file's permission bits and mtime
// onto path (the not-yet-renamed temporary output).
func preserveMetadata(path string, mode os.FileMode, modTime time.Time) error {
	if err := os.Chmod(path, mode.Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	times := []unix.Timespec{
		unix.NsecToTimespec(modTime.UnixNano()),
		unix.NsecToTimespec(modTime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0); err != nil {
		return fmt.Errorf("utimensat %s: %w", path, err)
	}
	return nil
}
