package fileutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// WriteAtomic writes data through a temp file in the same directory and
// renames it over path, so a crash mid-write can never leave a
// partially-written file that would later parse as valid.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "unable to create data directory")
	}
	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to flush temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to close temp file")
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return errors.Wrap(err, "unable to set file mode")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "unable to rename temp file")
}

// Quarantine moves a corrupted file aside under a timestamped
// .autorecovery suffix so it stays available for manual inspection.
func Quarantine(path string) (string, error) {
	quarantined := fmt.Sprintf("%s-%d.autorecovery", path, time.Now().Unix())
	if err := os.Rename(path, quarantined); err != nil {
		return "", errors.Wrap(err, "unable to quarantine corrupted file")
	}
	return quarantined, nil
}
