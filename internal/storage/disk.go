package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for a path that would resolve outside the
// output directory.
var ErrOutsideRoot = errors.New("path escapes output directory")

// ErrPathConflict is returned when a file and a directory would need the
// same name, as for "/docs/v1.2" and "/docs/v1.2/intro".
var ErrPathConflict = errors.New("file and directory share a path")

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// DiskWriter writes files relative to a root directory.
type DiskWriter struct {
	root string
}

// NewDiskWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewDiskWriter(dir string) *DiskWriter {
	return &DiskWriter{root: filepath.Clean(dir)}
}

// Root returns the output directory.
func (w *DiskWriter) Root() string {
	return w.root
}

// WriteFile creates the slash-separated relative path p with data,
// creating parent directories as needed. An existing file is replaced.
func (w *DiskWriter) WriteFile(p string, data []byte) error {
	full, err := w.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		if file := w.fileAncestor(full); file != "" {
			return fmt.Errorf("%w: %s is a file", ErrPathConflict, file)
		}
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if fi, err := os.Lstat(full); err == nil {
		switch {
		case fi.IsDir():
			return fmt.Errorf("%w: %s is a directory", ErrPathConflict, p)
		case fi.Mode()&os.ModeSymlink != 0:
			// A previous run may have left a symlink here; write the file itself.
			if err := os.Remove(full); err != nil {
				return fmt.Errorf("failed to replace symlink: %w", err)
			}
		}
	}

	if err := os.WriteFile(full, data, filePerm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Symlink creates link (a slash-separated relative path) pointing at target.
// target is interpreted relative to link's directory. An existing entry at
// link is replaced.
func (w *DiskWriter) Symlink(target, link string) error {
	full, err := w.resolve(link)
	if err != nil {
		return err
	}
	if _, err := w.resolve(filepath.ToSlash(filepath.Join(filepath.Dir(link), target))); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace existing entry: %w", err)
	}
	if err := os.Symlink(filepath.FromSlash(target), full); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// fileAncestor returns the slash-separated relative path of the first
// parent of full that exists as a non-directory, or "".
func (w *DiskWriter) fileAncestor(full string) string {
	var parents []string
	for dir := filepath.Dir(full); dir != w.root && len(dir) > len(w.root); dir = filepath.Dir(dir) {
		parents = append(parents, dir)
	}
	for i := len(parents) - 1; i >= 0; i-- {
		fi, err := os.Stat(parents[i])
		if err != nil {
			return ""
		}
		if !fi.IsDir() {
			rel, _ := filepath.Rel(w.root, parents[i])
			return filepath.ToSlash(rel)
		}
	}
	return ""
}

// resolve joins p onto the root and rejects results outside it.
func (w *DiskWriter) resolve(p string) (string, error) {
	full := filepath.Join(w.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return full, nil
}
