package sniffer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// visitFunc receives the canonical path of each regular file in the walk.
type visitFunc func(path string) error

// target is a resolved walk: either one file or a base directory plus a
// slash-separated pattern relative to it.
type target struct {
	file    string
	base    string
	pattern string
}

func (s *Sniffer) resolveTarget() (target, error) {
	if file, ok := singleFile(s.root); ok {
		return target{file: file}, nil
	}

	normalized := Normalize(s.root)
	base, pattern := splitPattern(normalized)
	if !doublestar.ValidatePattern(pattern) {
		return target{}, &GlobError{Pattern: normalized, Err: ErrBadPattern}
	}
	info, err := os.Stat(base)
	if err != nil {
		return target{}, &GlobError{Pattern: normalized, Err: err}
	}
	if !info.IsDir() {
		return target{}, &GlobError{Pattern: normalized, Err: fmt.Errorf("%s is not a directory", base)}
	}
	return target{base: base, pattern: pattern}, nil
}

// walk enumerates the target and calls fn once per regular file, in
// enumeration order. Directories, non-regular files, the store's own files,
// excluded output files and ignored paths are skipped. The first error
// aborts the walk.
func (s *Sniffer) walk(ctx context.Context, fn visitFunc) error {
	t, err := s.resolveTarget()
	if err != nil {
		return err
	}
	owned := s.store.Owns()

	visit := func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %q: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		canonical, err := canonicalize(path)
		if err != nil {
			return err
		}
		if owned(canonical) || s.exclude(canonical) {
			return nil
		}
		return fn(canonical)
	}

	if t.file != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		return visit(t.file)
	}

	var visitErr error
	walkErr := doublestar.GlobWalk(os.DirFS(t.base), t.pattern, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			visitErr = err
			return err
		}
		// fs.SkipDir from a GlobWalk callback skips the remaining siblings
		// under "**", not just the directory, so ignored directories are
		// pruned through the ancestor check in Ignored instead.
		if d.IsDir() {
			return nil
		}
		if s.ignore.Ignored(rel, false) {
			return nil
		}
		if err := visit(filepath.Join(t.base, filepath.FromSlash(rel))); err != nil {
			visitErr = err
			return err
		}
		return nil
	}, doublestar.WithFailOnIOErrors())

	if walkErr == nil {
		return nil
	}
	if visitErr != nil && errors.Is(walkErr, visitErr) {
		return visitErr
	}
	return &GlobError{Pattern: Normalize(s.root), Err: walkErr}
}

// canonicalize resolves path to an absolute, symlink-free form so that
// index and sniff runs from different working directories agree on
// path identity.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return resolved, nil
}
