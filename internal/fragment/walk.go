package fragment

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WalkFunc is called for every non-hidden directory and regular file reached
// from the walk root. info always describes the symlink target. Returning
// filepath.SkipDir from a directory visit skips that directory.
type WalkFunc func(path string, info fs.FileInfo) error

// Walk visits root recursively, following symbolic links. Each real directory
// is entered at most once, which breaks symlink cycles. Entries that vanish
// or cannot be stat'ed during the walk are skipped; only failures on root
// itself are returned.
func Walk(root string, fn WalkFunc) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fn(root, info)
	}

	visited := make(map[string]bool)
	err = walkDir(root, info, visited, fn, true)
	if errors.Is(err, filepath.SkipDir) {
		return nil
	}
	return err
}

func walkDir(dir string, info fs.FileInfo, visited map[string]bool, fn WalkFunc, isRoot bool) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if isRoot {
			return err
		}
		return nil
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	if err := fn(dir, info); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if isRoot {
			return err
		}
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := filepath.Join(dir, name)

		child, err := os.Stat(p)
		if err != nil {
			// Dangling symlink or file removed mid-walk.
			continue
		}

		switch {
		case child.IsDir():
			if err := walkDir(p, child, visited, fn, false); err != nil {
				if errors.Is(err, filepath.SkipDir) {
					continue
				}
				return err
			}
		case child.Mode().IsRegular():
			if err := fn(p, child); err != nil {
				return err
			}
		}
	}

	return nil
}
