// Package sniffer detects files that were added or modified since the last
// recorded snapshot of a directory tree.
//
// Index records a fresh baseline of content fingerprints. Sniff walks the
// tree again, reports every path whose fingerprint is new or different, and
// folds the new fingerprints back into the store. The store file is never
// part of its own walk, so rewriting it never shows up as a change.
package sniffer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/odvcencio/sniffers/internal/logging"
	"github.com/odvcencio/sniffers/pkg/digest"
	"github.com/odvcencio/sniffers/pkg/ignore"
	"github.com/odvcencio/sniffers/pkg/store"
)

// DefaultRoot is walked when no root is configured.
const DefaultRoot = "."

// Config holds the engine settings. Zero values select the defaults.
type Config struct {
	Root      string           // walk root or explicit glob; default "."
	StoreFile string           // store path; default store.DefaultFile
	Algorithm digest.Algorithm // default digest.SHA256
	Compress  bool             // zstd-frame the store on write
	Ignore    *ignore.Matcher  // nil ignores nothing
	Logger    *slog.Logger     // nil discards

	// Exclude lists other files the caller rewrites on every pass, such
	// as a metrics textfile or a log file. They are kept out of the walk
	// like the store, together with their temp files and rotated backups.
	Exclude []string
}

// Sniffer is the snapshot engine. It keeps no state between calls beyond its
// configuration; the on-disk store is the only shared state.
type Sniffer struct {
	root   string
	store  *store.Store
	alg    digest.Algorithm
	ignore  *ignore.Matcher
	exclude func(path string) bool
	log     *slog.Logger
}

// New builds a Sniffer. It performs no I/O.
func New(cfg Config) *Sniffer {
	root := cfg.Root
	if root == "" {
		root = DefaultRoot
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = digest.Default
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sniffer{
		root:    root,
		store:   store.New(cfg.StoreFile, store.WithCompression(cfg.Compress)),
		alg:     alg,
		ignore:  cfg.Ignore,
		exclude: excluder(cfg.Exclude),
		log:     logger,
	}
}

// Root returns the configured walk root.
func (s *Sniffer) Root() string { return s.root }

// Store returns the backing fingerprint store.
func (s *Sniffer) Store() *store.Store { return s.store }

func (s *Sniffer) String() string {
	return fmt.Sprintf("Sniffer{root: %q, store: %q, algorithm: %s}", s.root, s.store.Path(), s.alg)
}

// ChangeKind classifies a reported path.
type ChangeKind int

const (
	Added    ChangeKind = iota // not present in the store
	Modified                   // stored with a different digest
	Removed                    // stored but no longer found by the walk
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one reported path.
type Change struct {
	Path string
	Kind ChangeKind
}

// Report is the outcome of a diff against the store.
type Report struct {
	Changes  []Change      // discovery order; removals last
	Scanned  int           // regular files fingerprinted
	Duration time.Duration // wall time of the walk
}

// Paths returns the changed paths of the given kinds, in report order. With
// no kinds it returns every changed path.
func (r Report) Paths(kinds ...ChangeKind) []string {
	var paths []string
	for _, c := range r.Changes {
		if len(kinds) == 0 || containsKind(kinds, c.Kind) {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

func containsKind(kinds []ChangeKind, k ChangeKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Index fingerprints every file under the root and replaces the store with
// the result. It returns the number of records written. Any failure aborts
// the whole operation and leaves the previous store untouched.
func (s *Sniffer) Index(ctx context.Context) (int, error) {
	start := time.Now()
	w, err := s.store.Create()
	if err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}

	seen := make(map[string]struct{})
	err = s.walk(ctx, func(path string) error {
		if _, dup := seen[path]; dup {
			return nil
		}
		seen[path] = struct{}{}

		sum, err := s.hash(path)
		if err != nil {
			return err
		}
		return w.Append(path, sum)
	})
	if err != nil {
		w.Abort()
		return 0, fmt.Errorf("index: %w", err)
	}

	n := w.Len()
	if err := w.Commit(); err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}
	s.log.Info("index complete", "root", s.root, "store", s.store.Path(), "files", n, "elapsed", time.Since(start))
	return n, nil
}

// Sniff returns the paths that are new or modified relative to the store, in
// the order the walk discovered them, and persists the updated fingerprints.
// The store is rewritten even when nothing changed. It fails with
// store.ErrNotFound when Index has never run.
func (s *Sniffer) Sniff(ctx context.Context) ([]string, error) {
	report, err := s.SniffReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Paths(Added, Modified), nil
}

// SniffReport is Sniff with the full report.
func (s *Sniffer) SniffReport(ctx context.Context) (Report, error) {
	fps, err := s.store.Load()
	if err != nil {
		return Report{}, fmt.Errorf("sniff: %w", err)
	}

	report, err := s.diff(ctx, fps)
	if err != nil {
		return Report{}, fmt.Errorf("sniff: %w", err)
	}

	if err := s.store.Persist(fps); err != nil {
		return Report{}, fmt.Errorf("sniff: %w", err)
	}
	s.log.Info("sniff complete", "root", s.root, "scanned", report.Scanned, "changed", len(report.Changes), "elapsed", report.Duration)
	return report, nil
}

// Status diffs the tree against the store without writing anything. Unlike
// Sniff it also reports stored paths that the walk no longer finds.
func (s *Sniffer) Status(ctx context.Context) (Report, error) {
	fps, err := s.store.Load()
	if err != nil {
		return Report{}, fmt.Errorf("status: %w", err)
	}
	seen := make(map[string]struct{})
	report, err := s.diffTracking(ctx, fps, seen)
	if err != nil {
		return Report{}, fmt.Errorf("status: %w", err)
	}

	inScope, err := s.scopeFilter()
	if err != nil {
		return Report{}, fmt.Errorf("status: %w", err)
	}
	owned := s.store.Owns()
	var removed []string
	for p := range fps {
		if _, ok := seen[p]; ok || owned(p) || s.exclude(p) || !inScope(p) {
			continue
		}
		removed = append(removed, p)
	}
	sort.Strings(removed)
	for _, p := range removed {
		report.Changes = append(report.Changes, Change{Path: p, Kind: Removed})
	}
	return report, nil
}

func (s *Sniffer) diff(ctx context.Context, fps store.Fingerprints) (Report, error) {
	return s.diffTracking(ctx, fps, make(map[string]struct{}))
}

// diffTracking walks the tree and folds new and changed digests into fps,
// recording every visited path in seen.
func (s *Sniffer) diffTracking(ctx context.Context, fps store.Fingerprints, seen map[string]struct{}) (Report, error) {
	start := time.Now()
	var report Report
	err := s.walk(ctx, func(path string) error {
		if _, dup := seen[path]; dup {
			return nil
		}
		seen[path] = struct{}{}

		sum, err := s.hash(path)
		if err != nil {
			return err
		}
		report.Scanned++

		old, ok := fps[path]
		switch {
		case !ok:
			report.Changes = append(report.Changes, Change{Path: path, Kind: Added})
		case old != sum:
			report.Changes = append(report.Changes, Change{Path: path, Kind: Modified})
		default:
			return nil
		}
		fps[path] = sum
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (s *Sniffer) hash(path string) (string, error) {
	sum, err := digest.File(path, s.alg)
	if err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	s.log.Debug("fingerprint", "path", path, "digest", sum)
	return sum, nil
}

// scopeFilter reports whether a stored canonical path falls inside the
// walk target, so that Status only calls in-scope paths removed.
func (s *Sniffer) scopeFilter() (func(string) bool, error) {
	t, err := s.resolveTarget()
	if err != nil {
		return nil, err
	}
	if t.file != "" {
		file, err := canonicalize(t.file)
		if err != nil {
			return nil, err
		}
		return func(p string) bool { return p == file }, nil
	}

	base, err := canonicalize(t.base)
	if err != nil {
		return nil, err
	}
	return func(p string) bool {
		rel, err := filepath.Rel(base, p)
		if err != nil || rel == "." || rel == ".." || filepath.IsAbs(rel) || hasParentPrefix(rel) {
			return false
		}
		rel = filepath.ToSlash(rel)
		if s.ignore.Ignored(rel, false) {
			return false
		}
		ok, err := doublestar.Match(t.pattern, rel)
		return err == nil && ok
	}, nil
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && os.IsPathSeparator(rel[2])
}
