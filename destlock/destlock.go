// Package destlock guards a destination root against two backup
// processes writing into it at once, using an advisory file lock
// rather than anything the filesystem itself enforces.
package destlock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/kmichels/imageintactcore/internal/ierrors"
)

// LockFileName is the advisory lock file created at a destination root.
const LockFileName = ".imageintact.lock"

// SourceSentinelName is the tag file a source root may carry to mark
// itself as a source. A directory carrying this sentinel must never be
// used as a destination, per spec §6.
const SourceSentinelName = ".imageintact_source"

// RefuseTaggedSource returns a Policy error if destRoot carries the
// source sentinel, so the core refuses to write into a directory
// someone has already marked as a backup source.
func RefuseTaggedSource(destRoot string) error {
	if _, err := os.Stat(filepath.Join(destRoot, SourceSentinelName)); err == nil {
		return ierrors.Policy("destination %s is tagged as a backup source", destRoot)
	}

	return nil
}

// Lock wraps a non-blocking flock.Flock held for the life of a
// destination queue.
type Lock struct {
	fl *flock.Flock
}

// Acquire attempts to take the lock for destRoot without blocking. It
// returns a Policy error if another process already holds it.
func Acquire(destRoot string) (*Lock, error) {
	fl := flock.New(filepath.Join(destRoot, LockFileName))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, ierrors.FromOS(err, "locking destination %s", destRoot)
	}

	if !ok {
		return nil, ierrors.Policy("destination %s is locked by another backup process", destRoot)
	}

	return &Lock{fl: fl}, nil
}

// Release unlocks and closes the underlying lock file. It is safe to
// call more than once and safe to call on a nil *Lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}

	return l.fl.Unlock()
}
