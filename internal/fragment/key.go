// Package fragment names and selects the markup files under a views root.
//
// A fragment's key is its path with everything up to and including the last
// occurrence of the root's final segment removed, so
// "/app/src/views/pages/home/main.html" under "/app/src/views" becomes
// "pages/home/main.html". Keys always use forward slashes and NFC.
package fragment

import (
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key derives the FragmentKey of file p under root.
func Key(root, p string) string {
	slashRoot := norm.NFC.String(filepath.ToSlash(filepath.Clean(root)))
	slashPath := norm.NFC.String(filepath.ToSlash(p))

	if base := path.Base(slashRoot); base != "/" && base != "." {
		seg := "/" + base + "/"
		if i := strings.LastIndex(slashPath, seg); i >= 0 {
			return slashPath[i+len(seg):]
		}
		if strings.HasPrefix(slashPath, base+"/") {
			return slashPath[len(base)+1:]
		}
	}

	rel, err := filepath.Rel(root, p)
	if err != nil {
		return slashPath
	}
	return norm.NFC.String(filepath.ToSlash(rel))
}

// IsHidden reports whether p, relative to root, passes through a dot file or
// dot directory.
func IsHidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
