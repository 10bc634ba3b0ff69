package sniffer

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/sniffers/pkg/store"
)

// backupTimeFormat is the timestamp lumberjack puts in rotated log names.
const backupTimeFormat = "2006-01-02T15-04-05.000"

// excluder reports whether a canonical path is one of the tool's own output
// files: an excluded path itself, a textfile temp written next to it
// (<name><digits>), or a rotated backup of it (<stem>-<timestamp><ext>,
// optionally gzipped).
func excluder(paths []string) func(path string) bool {
	if len(paths) == 0 {
		return func(string) bool { return false }
	}
	type outFile struct {
		path, dir, base, stem, ext string
	}
	files := make([]outFile, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		canonical := store.CanonicalPath(p)
		base := filepath.Base(canonical)
		ext := filepath.Ext(base)
		files = append(files, outFile{
			path: canonical,
			dir:  filepath.Dir(canonical),
			base: base,
			stem: strings.TrimSuffix(base, ext),
			ext:  ext,
		})
	}

	return func(path string) bool {
		dir, name := filepath.Split(path)
		dir = filepath.Clean(dir)
		for _, f := range files {
			if path == f.path {
				return true
			}
			if dir != f.dir {
				continue
			}
			if rest, ok := strings.CutPrefix(name, f.base); ok && allDigits(rest) {
				return true
			}
			if isBackup(name, f.stem, f.ext) {
				return true
			}
		}
		return false
	}
}

func isBackup(name, stem, ext string) bool {
	rest, ok := strings.CutPrefix(name, stem+"-")
	if !ok {
		return false
	}
	rest = strings.TrimSuffix(rest, ".gz")
	stamp, ok := strings.CutSuffix(rest, ext)
	if !ok {
		return false
	}
	_, err := time.Parse(backupTimeFormat, stamp)
	return err == nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
