// Package vault provides the file-tree provider the consistency engine runs
// against: path-safe reads and writes, moves, copies and folder maintenance,
// all addressed by slash-separated vault-relative paths.
package vault

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is a vault rooted at a local directory. All paths passed to its methods
// are vault-relative with forward slashes.
type FS struct {
	root string // absolute path to the vault directory
}

// New creates an FS rooted at the given directory. The directory must exist.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (v *FS) Root() string { return v.root }

// NormalizePath cleans a vault-relative path: forward slashes, no leading "./".
func NormalizePath(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(clean, "./")
}

// abs resolves a relative path against the vault root and rejects any result
// that escapes it (directory traversal).
func (v *FS) abs(rel string) (string, error) {
	if rel == "" || rel == "." {
		return v.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(v.root, cleaned)
	if !strings.HasPrefix(joined, v.root+string(os.PathSeparator)) && joined != v.root {
		return "", fmt.Errorf("vault: path escapes vault root: %s", rel)
	}
	return joined, nil
}

// Exists reports whether a file or folder exists at the given path.
func (v *FS) Exists(rel string) bool {
	p, err := v.abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// IsDir reports whether the path exists and is a folder.
func (v *FS) IsDir(rel string) bool {
	p, err := v.abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Read returns the raw bytes of the file at path.
func (v *FS) Read(rel string) ([]byte, error) {
	p, err := v.abs(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Write atomically writes content to path, creating parent folders as needed.
// The write goes through a temp file in the destination folder followed by a
// rename, so a reader never observes a half-written document.
func (v *FS) Write(rel string, data []byte) error {
	p, err := v.abs(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp.%s.%d", filepath.Base(p), os.Getpid()))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

// Move renames oldRel to newRel, creating the destination folder if absent.
func (v *FS) Move(oldRel, newRel string) error {
	oldP, err := v.abs(oldRel)
	if err != nil {
		return err
	}
	newP, err := v.abs(newRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newP), 0o755); err != nil {
		return err
	}
	return os.Rename(oldP, newP)
}

// Copy duplicates the file at oldRel to newRel, creating the destination
// folder if absent.
func (v *FS) Copy(oldRel, newRel string) error {
	oldP, err := v.abs(oldRel)
	if err != nil {
		return err
	}
	newP, err := v.abs(newRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newP), 0o755); err != nil {
		return err
	}
	src, err := os.Open(oldP)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	dst, err := os.OpenFile(newP, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(newP)
		return err
	}
	return dst.Close()
}

// Delete removes the file at path.
func (v *FS) Delete(rel string) error {
	p, err := v.abs(rel)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// CreateFolder makes the folder at path, including parents.
func (v *FS) CreateFolder(rel string) error {
	p, err := v.abs(rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o755)
}

// ListChildren returns the immediate file and folder children of a folder,
// as vault-relative paths.
func (v *FS) ListChildren(rel string) (files, folders []string, err error) {
	p, err := v.abs(rel)
	if err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, nil, err
	}
	base := NormalizePath(rel)
	for _, e := range entries {
		child := e.Name()
		if base != "" && base != "." {
			child = base + "/" + child
		}
		if e.IsDir() {
			folders = append(folders, child)
		} else {
			files = append(files, child)
		}
	}
	return files, folders, nil
}

// Walk visits every file under rel (recursively), calling fn with each file's
// vault-relative path. Hidden files and folders (dot-prefixed) are skipped.
func (v *FS) Walk(rel string, fn func(path string) error) error {
	base, err := v.abs(rel)
	if err != nil {
		return err
	}
	return filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if strings.HasPrefix(d.Name(), ".") && p != base {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(relPath))
	})
}
