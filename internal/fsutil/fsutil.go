package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/u-root/u-root/pkg/cp"
)

// DefaultDirMode is used for directories created on the destination side.
const DefaultDirMode os.FileMode = 0o755

// ErrNotFound is returned when a source path does not exist.
var ErrNotFound = errors.New("path not found")

// Exists reports whether path exists. Errors other than "not exist" count as existing
// so callers surface them on the following operation.
func Exists(path string) bool {
	_, err := os.Lstat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// CopyPath copies a file or a whole tree from src to dst.
// An existing dst is replaced so repeated runs overwrite previous output.
func CopyPath(src, dst string) error {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", src, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err = os.RemoveAll(dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}

	if err = os.MkdirAll(filepath.Dir(dst), DefaultDirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}

	if info.IsDir() {
		err = cp.CopyTree(src, dst)
	} else {
		err = cp.Copy(src, dst)
	}

	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	return nil
}

// MergeMove moves the contents of the src directory into dst, creating dst when
// needed and overwriting entries that already exist there. src is removed afterwards.
func MergeMove(src, dst string) error {
	entries, err := os.ReadDir(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", src, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if err = os.MkdirAll(dst, DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		if entry.IsDir() && IsDir(to) {
			if err = MergeMove(from, to); err != nil {
				return err
			}

			continue
		}

		if err = os.RemoveAll(to); err != nil {
			return fmt.Errorf("replace %s: %w", to, err)
		}

		if err = os.Rename(from, to); err != nil {
			return fmt.Errorf("move %s to %s: %w", from, to, err)
		}
	}

	if err = os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}

	return nil
}

// Remove deletes path recursively. A missing path yields ErrNotFound.
func Remove(path string) error {
	if !Exists(path) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// Size returns the size of a regular file in bytes.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// Checksum returns the hex encoded SHA-256 of a file.
func Checksum(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
