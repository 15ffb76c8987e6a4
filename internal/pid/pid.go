// Package pid guards against two daemons driving the same session.
package pid

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codeberg.org/mutker/proxlock/internal/errors"
)

// File is a held PID file.
type File struct {
	path string
}

// Acquire writes the current process ID to path. It fails with
// ErrAlreadyRunning when the file names a live process. A stale file is
// replaced.
func Acquire(path string) (*File, error) {
	errFactory := errors.New()

	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(string(bytes.TrimSpace(data))); err == nil && alive(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &File{path: path}, nil
}

func alive(pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// EPERM still means the process exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Release removes the PID file.
func (f *File) Release() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrInternal, err)
	}
	return nil
}
