package vault

import (
	"os"
	"path/filepath"
	"strings"
)

// PruneUpward removes the folder at rel if it is empty, then repeats on its
// parent, stopping at the vault root or at the first non-empty folder. A
// folder that does not exist counts as already pruned; a removal that fails
// because the folder turned out non-empty (a race with another writer) is
// treated as the stopping condition, not an error.
func (v *FS) PruneUpward(rel string) error {
	dir, err := v.abs(rel)
	if err != nil {
		return err
	}
	for {
		relPath, err := filepath.Rel(v.root, dir)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." || relPath == "" || strings.HasPrefix(relPath, "..") {
			return nil // reached vault root
		}
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			dir = filepath.Dir(dir)
			continue
		}
		if err := os.Remove(dir); err != nil {
			return nil // non-empty or racing writer
		}
		dir = filepath.Dir(dir)
	}
}

// EmptyFolders returns every folder under rel that contains no files at any
// depth, deepest first, so removing them in order empties parents too.
// Hidden folders are skipped.
func (v *FS) EmptyFolders(rel string) ([]string, error) {
	base, err := v.abs(rel)
	if err != nil {
		return nil, err
	}
	var empties []string
	var scan func(dir string) (bool, error)
	scan = func(dir string) (bool, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return true, nil
			}
			return false, err
		}
		empty := true
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				empty = false
				continue
			}
			if e.IsDir() {
				childEmpty, err := scan(filepath.Join(dir, e.Name()))
				if err != nil {
					return false, err
				}
				if !childEmpty {
					empty = false
				}
			} else {
				empty = false
			}
		}
		if empty && dir != base {
			relPath, err := filepath.Rel(v.root, dir)
			if err != nil {
				return false, err
			}
			empties = append(empties, filepath.ToSlash(relPath))
		}
		return empty, nil
	}
	if _, err := scan(base); err != nil {
		return nil, err
	}
	return empties, nil
}
