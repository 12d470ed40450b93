// Package fsutil provides the truncate+write+sync helpers shared by
// every component that owns a sysfs node or a config file exclusively:
// per §5, writes must be a full truncate+write followed by an explicit
// sync before the caller may consider them durable.
package fsutil

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/dgpud/dgpud/pkg/gfxerr"
)

// syncFile fsyncs the file at path. Sysfs nodes don't support fsync in
// the traditional sense, but calling it is cheap and correct for the
// regular files (modprobe.d, the JSON config) this is actually used on.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		// Sysfs control nodes may be write-only; a failed reopen for
		// sync is not a write failure.
		return nil
	}
	defer f.Close()
	if err := unix.Fsync(int(f.Fd())); err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, path, err)
	}
	return nil
}

// SyncFile is the exported form of syncFile for callers outside this
// package's own WriteTruncate helper.
func SyncFile(path string) error { return syncFile(path) }

// WriteTruncate truncates path (creating it if necessary) and writes
// data, then syncs it, satisfying the engine-wide write contract.
func WriteTruncate(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return gfxerr.WrapPath(gfxerr.KindWrite, path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return gfxerr.WrapPath(gfxerr.KindWrite, path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return gfxerr.WrapPath(gfxerr.KindWrite, path, err)
	}
	return f.Close()
}
