package require

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// createTemp is swapped out by tests to simulate an unusable temp directory.
var createTemp = os.CreateTemp

// umaskMu serializes the process-wide umask change around file creation.
var umaskMu sync.Mutex

// transient is a read/write temporary file that carries a compiled unit from
// the compiler instance to the caller's interpreter. It must be released on
// every path.
type transient struct {
	*os.File
	Release func() error
}

// tempLocation picks the directory for transient files: dir when set,
// otherwise the platform temp directory. If that directory does not exist
// the current directory is used with a plain "tmp." prefix.
func tempLocation(dir string) (string, string) {
	if dir == "" {
		dir = os.TempDir()
	}
	if _, err := os.Stat(dir); err != nil {
		return ".", "tmp.*"
	}
	return dir, "rite-*.mrb"
}

func newTransient(dir string) (*transient, error) {
	dir, pattern := tempLocation(dir)

	umaskMu.Lock()
	old := setUmask(0o077)
	f, err := createTemp(dir, pattern)
	setUmask(old)
	umaskMu.Unlock()
	if err != nil {
		return nil, err
	}

	name := f.Name()
	release := sync.OnceValue(func() error {
		var result *multierror.Error
		if err := f.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
			result = multierror.Append(result, err)
		}
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	})
	return &transient{File: f, Release: release}, nil
}
