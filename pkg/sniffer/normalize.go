package sniffer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// recursiveSuffix matches every entry below a directory at any depth.
const recursiveSuffix = "/**/*"

// Normalize turns a walk root into a recursive glob pattern.
//
// A root ending in a separator, or equal to ".", has trailing separators
// trimmed and "/**/*" appended. A root containing a wildcard (*, ? or [) is
// an explicit pattern and is returned unchanged. Any other root is treated as
// a directory and gets "/**/*" appended. The empty root means ".".
func Normalize(input string) string {
	if input == "" {
		input = "."
	}
	if input == "." || strings.HasSuffix(input, "/") || strings.HasSuffix(input, string(filepath.Separator)) {
		trimmed := strings.TrimRight(input, "/"+string(filepath.Separator))
		return trimmed + recursiveSuffix
	}
	if HasWildcard(input) {
		return input
	}
	return input + recursiveSuffix
}

// HasWildcard reports whether s contains a glob metacharacter.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// BaseDir returns the directory a walk of root starts from: the root itself
// for a directory, the parent for a single regular file, and the literal
// prefix of an explicit pattern.
func BaseDir(root string) string {
	if file, ok := singleFile(root); ok {
		return filepath.Dir(file)
	}
	base, _ := splitPattern(Normalize(root))
	return base
}

// singleFile reports whether a wildcard-free root names an existing regular
// file, which is then walked on its own instead of as a directory.
func singleFile(root string) (string, bool) {
	if root == "" || HasWildcard(root) {
		return "", false
	}
	info, err := os.Stat(root)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return root, true
}

// splitPattern separates a normalized pattern into the literal base
// directory (in OS form) and the slash-separated remainder.
func splitPattern(pattern string) (string, string) {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
	if base == "" {
		base = "."
	}
	return filepath.FromSlash(base), rest
}
