package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauern/assetsync/internal/logging"
)

const (
	dirMode  fs.FileMode = 0o755
	fileMode fs.FileMode = 0o644
	execMode fs.FileMode = 0o755
)

// ensureParent creates the parent directory of path if it is missing.
func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	return nil
}

// chmod is replaced in tests.
var chmod = os.Chmod

// errOccupied reports a non-empty directory where a file belongs.
var errOccupied = errors.New("destination is a non-empty directory")

// removeIrregular clears path so a file can be created there. Regular
// files stay for truncation, symlinks and empty directories are removed
// as entries. A non-empty directory is never removed.
func removeIrregular(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.Mode().IsRegular()) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("failed to read directory %q: %w", path, err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%q: %w", path, errOccupied)
		}
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %q: %w", path, err)
	}
	logging.Debug("removed existing entry", logging.Path(path))
	return nil
}

// removePartial deletes a file left by a failed attempt.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("failed to remove partial file", logging.Path(path), logging.Err(err))
	}
}

// makeDir creates a directory and its parents. An existing directory is
// left as is.
func makeDir(path string) error {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", path, err)
	}
	return nil
}

// makeSymlink creates a symlink at path pointing at target, creating the
// parent directory first.
func makeSymlink(target, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.Symlink(filepath.FromSlash(target), path); err != nil {
		return fmt.Errorf("failed to create symlink %q: %w", path, err)
	}
	return nil
}

// setExecutable marks path executable on hosts with a permission bit.
// Symlinks are never chmodded.
func setExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}
	// #nosec G302 - executables in the runtime tree must be runnable
	if err := chmod(path, execMode); err != nil {
		return fmt.Errorf("failed to chmod %q: %w", path, err)
	}
	return nil
}
