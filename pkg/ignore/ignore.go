// Package ignore implements the .sniffignore rules used to keep paths out of
// a walk. The syntax is a subset of gitignore: blank lines and # comments are
// skipped, ! negates, a trailing / restricts a pattern to directories, and a
// pattern containing / is matched against the full root-relative path rather
// than the base name. Globs support *, ?, [...] and **.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFile is the ignore file name looked up in the walk root.
const DefaultFile = ".sniffignore"

// Matcher decides whether a root-relative path is ignored.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	glob     string
	negated  bool
	dirOnly  bool
	hasSlash bool
}

// Load reads name from root. A missing file yields an empty Matcher.
func Load(root, name string) (*Matcher, error) {
	if name == "" {
		name = DefaultFile
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, name)
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Matcher{}, nil
		}
		return nil, fmt.Errorf("load ignore file: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load ignore file %s: %w", p, err)
	}
	return m, nil
}

// Parse reads one pattern per line.
func Parse(r io.Reader) (*Matcher, error) {
	m := &Matcher{}
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		p, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if !doublestar.ValidatePattern(p.glob) {
			return nil, fmt.Errorf("line %d: invalid pattern %q", n, scanner.Text())
		}
		m.patterns = append(m.patterns, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// New builds a Matcher from literal pattern lines. Invalid lines are dropped.
func New(lines ...string) *Matcher {
	m := &Matcher{}
	for _, line := range lines {
		if p, ok := parseLine(line); ok && doublestar.ValidatePattern(p.glob) {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

func parseLine(line string) (pattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	var p pattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.hasSlash = strings.Contains(line, "/")
	p.glob = strings.TrimPrefix(line, "/")
	if p.glob == "" {
		return pattern{}, false
	}
	return p, true
}

// Len returns the number of active patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Ignored reports whether rel (slash separated, relative to the walk root)
// is excluded. A path under an ignored directory is always ignored.
// Otherwise the last matching pattern wins.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if m.Len() == 0 {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && m.decide(rel[:i], true) {
			return true
		}
	}
	return m.decide(rel, isDir)
}

func (m *Matcher) decide(rel string, isDir bool) bool {
	ignored := false
	for _, p := range m.patterns {
		if p.matches(rel, isDir) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p pattern) matches(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	target := rel
	if !p.hasSlash {
		target = path.Base(rel)
	}
	ok, err := doublestar.Match(p.glob, target)
	return err == nil && ok
}
