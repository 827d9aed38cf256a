//go:build !unix

package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// tryLock falls back to an exclusive create-only lock file. Shared and
// exclusive requests behave the same, except that readers in a directory
// they cannot write proceed unlocked.
func tryLock(path string, exclusive bool) (func() error, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, false, nil
		}
		if !exclusive && errors.Is(err, fs.ErrPermission) {
			return func() error { return nil }, true, nil
		}
		return nil, false, fmt.Errorf("create lock file: %w", err)
	}

	release := func() error {
		cerr := f.Close()
		if rerr := os.Remove(path); rerr != nil {
			return rerr
		}
		return cerr
	}
	return release, true, nil
}
