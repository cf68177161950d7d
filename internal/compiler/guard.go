package compiler

import (
	"os"

	"github.com/conneroisu/viewpack/internal/errors"
)

// CheckDir verifies that dir exists and is a directory. It returns a
// ConfigurationError otherwise.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewConfigError(errors.ErrCodeDirMissing, "views directory does not exist", err).WithPath(dir)
		}
		return errors.NewConfigError(errors.ErrCodeDirMissing, "views directory is not accessible", err).WithPath(dir)
	}
	if !info.IsDir() {
		return errors.NewConfigError(errors.ErrCodeNotADirectory, "views path is not a directory", nil).WithPath(dir)
	}
	return nil
}
