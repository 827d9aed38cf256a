package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/logging"
)

// maxPollInterval caps the backoff between lock polls.
const maxPollInterval = 500 * time.Millisecond

// errLocked is returned by a poll that found the lock held.
var errLocked = errors.New("lock held")

// LockOptions configures lock acquisition.
type LockOptions struct {
	// Filename is the lock file name inside the index root.
	Filename string

	// Timeout bounds acquisition.
	Timeout time.Duration

	// Interval is the initial poll interval.
	Interval time.Duration
}

// Lock is a held advisory lock on an index root. Locks are advisory and
// host-local: they serialize cooperating processes on one machine.
type Lock struct {
	path      string
	exclusive bool
	release   func() error
}

// LockExclusive acquires the writer lock for dir.
func LockExclusive(ctx context.Context, dir string, opts LockOptions) (*Lock, error) {
	return acquire(ctx, dir, opts, true)
}

// LockShared acquires a reader lock for dir. Readers share the lock with
// each other but exclude writers.
func LockShared(ctx context.Context, dir string, opts LockOptions) (*Lock, error) {
	return acquire(ctx, dir, opts, false)
}

func acquire(ctx context.Context, dir string, opts LockOptions, exclusive bool) (*Lock, error) {
	if opts.Timeout <= 0 {
		return nil, herrors.NewValidation("lock timeout", fmt.Sprintf("%v must be positive", opts.Timeout))
	}
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultRetryInterval
	}
	if opts.Filename == "" {
		opts.Filename = config.DefaultIndexFilename + config.LockSuffix
	}

	path := filepath.Join(dir, opts.Filename)
	log := logging.Component("index")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.Interval
	b.MaxInterval = maxPollInterval
	b.MaxElapsedTime = opts.Timeout
	b.Reset()

	var release func() error
	polls := 0
	op := func() error {
		polls++
		r, ok, err := tryLock(path, exclusive)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLocked
		}
		release = r
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
	case errors.Is(err, errLocked):
		return nil, fmt.Errorf("%s after %v: %w", path, opts.Timeout, herrors.ErrLockTimeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if polls > 1 {
		log.Debug("lock acquired after wait", "path", path, "exclusive", exclusive, "polls", polls)
	}
	return &Lock{path: path, exclusive: exclusive, release: release}, nil
}

// Exclusive reports whether the lock is the writer lock.
func (l *Lock) Exclusive() bool {
	return l.exclusive
}

// Unlock releases the lock. It is safe to call more than once.
func (l *Lock) Unlock() error {
	if l == nil || l.release == nil {
		return nil
	}
	r := l.release
	l.release = nil
	return r()
}
