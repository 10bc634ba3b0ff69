// Package store persists the path → fingerprint mapping used as the baseline
// for change detection.
//
// The on-disk format is line oriented, one record per file:
//
//	<absolute-path>\t<UPPERCASE-HEX-256>\n
//
// with no header. A store may optionally be wrapped in a single zstd frame;
// Load detects the frame and decodes it transparently.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/sniffers/pkg/digest"
)

// Delimiter separates the path and the digest on each record line. It cannot
// occur in a hex digest, and paths containing it are rejected on write.
const Delimiter = "\t"

// DefaultFile is the store file name used when none is configured.
const DefaultFile = ".sniffers"

const maxRecordLen = 1 << 20

var (
	// ErrNotFound is returned by Load when the store has never been written.
	ErrNotFound = errors.New("fingerprint store not found")

	// ErrUnencodablePath is returned when a path contains the record
	// delimiter or a line break.
	ErrUnencodablePath = errors.New("path cannot be stored")
)

// CorruptRecordError reports a store line that does not parse into exactly
// one path and one digest.
type CorruptRecordError struct {
	File string // store path; empty when parsing a bare reader
	Line int    // 1-based line number
	Text string // offending line
}

func (e *CorruptRecordError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.File == "" {
		return fmt.Sprintf("corrupt store record at line %d: %q", e.Line, e.Text)
	}
	return fmt.Sprintf("corrupt store record in %s at line %d: %q", e.File, e.Line, e.Text)
}

// Fingerprints maps absolute file paths to their encoded digests.
type Fingerprints map[string]string

// Paths returns the mapping's keys in lexical order.
func (f Fingerprints) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Store is a handle on a fingerprint store file. Creating a Store does no I/O.
type Store struct {
	path     string
	compress bool
}

// Option configures a Store.
type Option func(*Store)

// WithCompression makes Persist and Create write a zstd-framed store.
func WithCompression(on bool) Option {
	return func(s *Store) { s.compress = on }
}

// New returns a Store backed by the file at path.
func New(path string, opts ...Option) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path as configured.
func (s *Store) Path() string {
	return s.path
}

// Compressed reports whether new writes are zstd framed.
func (s *Store) Compressed() bool {
	return s.compress
}

// Load reads the full store into memory. Later records for a path replace
// earlier ones.
func (s *Store) Load() (Fingerprints, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load store %s: %w (run index first)", s.path, ErrNotFound)
		}
		return nil, fmt.Errorf("load store: %w", err)
	}
	defer f.Close()

	r, closeFn, err := openFramed(f)
	if err != nil {
		return nil, fmt.Errorf("load store %s: %w", s.path, err)
	}
	defer closeFn()

	fps, err := Parse(r)
	if err != nil {
		var corrupt *CorruptRecordError
		if errors.As(err, &corrupt) {
			corrupt.File = s.path
			return nil, corrupt
		}
		return nil, fmt.Errorf("load store %s: %w", s.path, err)
	}
	return fps, nil
}

// Persist atomically replaces the store with fps. Records are written in
// lexical path order.
func (s *Store) Persist(fps Fingerprints) error {
	w, err := s.Create()
	if err != nil {
		return err
	}
	for _, p := range fps.Paths() {
		if err := w.Append(p, fps[p]); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Commit()
}

// Owns returns a predicate reporting whether a canonical absolute path is
// the store file itself or one of its temp files.
func (s *Store) Owns() func(path string) bool {
	self := CanonicalPath(s.path)
	dir := filepath.Dir(self)
	prefix := tempPrefix(self)
	return func(path string) bool {
		if path == self {
			return true
		}
		return filepath.Dir(path) == dir && strings.HasPrefix(filepath.Base(path), prefix)
	}
}

// Parse decodes line-oriented records from r. Empty lines are skipped.
func Parse(r io.Reader) (Fingerprints, error) {
	fps := make(Fingerprints)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLen)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		path, sum, ok := splitRecord(text)
		if !ok {
			return nil, &CorruptRecordError{Line: line, Text: text}
		}
		fps[path] = sum
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fps, nil
}

func splitRecord(text string) (string, string, bool) {
	if strings.Count(text, Delimiter) != 1 {
		return "", "", false
	}
	i := strings.LastIndex(text, Delimiter)
	path, sum := text[:i], text[i+len(Delimiter):]
	if path == "" || !digest.Valid(sum) {
		return "", "", false
	}
	return path, sum, true
}

func encodable(path string) bool {
	return path != "" && !strings.Contains(path, Delimiter) && !strings.ContainsAny(path, "\r\n")
}

func tempPrefix(path string) string {
	return "." + strings.TrimPrefix(filepath.Base(path), ".") + ".tmp-"
}

// CanonicalPath resolves path to an absolute path with symlinks evaluated.
// The file itself need not exist; its directory is resolved instead.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs
	}
	return filepath.Join(dir, filepath.Base(abs))
}
