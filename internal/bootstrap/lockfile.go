package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LockFile guards against two bootstraps racing over the same state
// directory. The file holds the owner's PID; a lock left behind by a dead
// process is taken over.
type LockFile struct {
	path string
}

// AcquireLock creates path exclusively with the current PID. When the file
// already exists and its PID refers to a live process, acquisition fails.
func AcquireLock(path string) (*LockFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	for range [2]struct{}{} {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.Join(werr, cerr)
			}
			return &LockFile{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		pid, perr := readLockPID(path)
		if perr == nil && pidAlive(pid) {
			return nil, fmt.Errorf("bootstrap already running (pid %d, lock %s)", pid, path)
		}
		// Stale or unreadable lock: remove and retry once.
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return nil, rerr
		}
	}
	return nil, fmt.Errorf("could not acquire lock %s", path)
}

// Release removes the lock file. Safe to call once after a successful
// AcquireLock.
func (l *LockFile) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LockFile) Path() string { return l.path }

func readLockPID(path string) (int, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
