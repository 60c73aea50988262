// Package npyarchive stores completed capture buffers as numpy .npy files,
// one file per filled buffer, so captures can be inspected with the usual
// Python tooling.
package npyarchive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
)

// Archive writes buffers into one directory.
type Archive struct {
	dir string
}

// New creates the archive directory if needed.
func New(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, err
	}
	return &Archive{dir: dir}, nil
}

// WriteBuffer stores one filled buffer under the session's ID and a running
// buffer index, returning the file's path.
func (a *Archive) WriteBuffer(sessionID string, index int, data []uint16) (string, error) {
	fname := filepath.Join(a.dir, fmt.Sprintf("%s_%04d.npy", sessionID, index))
	f, err := os.Create(fname)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := npyio.Write(f, data); err != nil {
		os.Remove(fname)
		return "", err
	}
	return fname, nil
}
