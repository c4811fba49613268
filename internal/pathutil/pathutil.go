// Package pathutil provides small path-joining and containment helpers
// used by internal/fileutil.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Join joins elem onto base and cleans the result, the same as
// filepath.Join, but is named separately so callers reach for this package
// rather than mixing filepath calls directly into command code.
func Join(base string, elem ...string) string {
	parts := append([]string{base}, elem...)
	return filepath.Join(parts...)
}

// Contains reports whether candidate, once cleaned and made absolute
// relative to base, actually resides inside base. It's used to reject
// paths that escape a configured root via "..".
func Contains(base, candidate string) bool {
	base = filepath.Clean(base)
	full := candidate
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, candidate)
	} else {
		full = filepath.Clean(full)
	}

	rel, err := filepath.Rel(base, full)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
