package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Writer streams records into a fresh store. Nothing is visible at the store
// path until Commit renames the temp file into place.
type Writer struct {
	store   *Store
	tmp     *os.File
	buf     *bufio.Writer
	enc     *zstd.Encoder
	records int
	done    bool
}

// Create opens a writer for a fresh store. It fails when the store's
// directory is missing or unwritable.
func (s *Store) Create() (*Writer, error) {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), tempPrefix(s.path)+"*")
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	w := &Writer{store: s, tmp: tmp}
	var dst io.Writer = tmp
	if s.compress {
		enc, err := zstd.NewWriter(tmp)
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("create store: zstd: %w", err)
		}
		w.enc = enc
		dst = enc
	}
	w.buf = bufio.NewWriter(dst)
	return w, nil
}

// Append writes one record.
func (w *Writer) Append(path, sum string) error {
	if w.done {
		return fmt.Errorf("append %q: store writer already closed", path)
	}
	if !encodable(path) {
		return fmt.Errorf("append %q: %w", path, ErrUnencodablePath)
	}
	if _, err := w.buf.WriteString(path); err != nil {
		return fmt.Errorf("append %q: %w", path, err)
	}
	if _, err := w.buf.WriteString(Delimiter); err != nil {
		return fmt.Errorf("append %q: %w", path, err)
	}
	if _, err := w.buf.WriteString(sum); err != nil {
		return fmt.Errorf("append %q: %w", path, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("append %q: %w", path, err)
	}
	w.records++
	return nil
}

// Len returns the number of records appended so far.
func (w *Writer) Len() int {
	return w.records
}

// Commit flushes all records and renames the temp file over the store.
func (w *Writer) Commit() error {
	if w.done {
		return fmt.Errorf("commit store: writer already closed")
	}
	w.done = true
	tmpName := w.tmp.Name()

	if err := w.buf.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("commit store: flush: %w", err)
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			w.discard()
			return fmt.Errorf("commit store: zstd: %w", err)
		}
	}
	if err := w.tmp.Chmod(0o644); err != nil {
		w.discard()
		return fmt.Errorf("commit store: chmod: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit store: close: %w", err)
	}
	if err := os.Rename(tmpName, w.store.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit store: rename: %w", err)
	}
	return nil
}

// Abort discards everything written. It is a no-op after Commit.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	if w.enc != nil {
		w.enc.Close()
	}
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}
