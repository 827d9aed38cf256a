//go:build unix

package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// tryLock makes one non-blocking flock(2) attempt. The lock file is never
// removed; unlinking a flock'd file lets a second locker in on a new inode.
func tryLock(path string, exclusive bool) (func() error, bool, error) {
	f, err := openLockFile(path, exclusive)
	if errors.Is(err, errUnwritable) {
		return func() error { return nil }, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}

	for {
		err = unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock: %w", err)
	}

	release := func() error {
		uerr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
		cerr := f.Close()
		if uerr != nil {
			return fmt.Errorf("unlock: %w", uerr)
		}
		return cerr
	}
	return release, true, nil
}

// errUnwritable reports a missing lock file that cannot be created. No
// writer can hold a lock there either, so readers proceed unlocked.
var errUnwritable = errors.New("lock file cannot be created")

// openLockFile opens the lock file for one attempt. Readers open it
// read-only so datasets on read-only mounts stay readable.
func openLockFile(path string, exclusive bool) (*os.File, error) {
	if exclusive {
		return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	}

	f, err := os.Open(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return f, err
	}
	f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil && (errors.Is(err, unix.EROFS) || errors.Is(err, fs.ErrPermission)) {
		return nil, errUnwritable
	}
	return f, err
}
