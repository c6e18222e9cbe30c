// Package ndjson appends and reads newline-delimited JSON logs.
// A Writer makes every record durable before Append returns; a Reader skips
// lines it cannot decode so a torn tail from a crash never blocks a resume.
package ndjson

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	perr "repoharvest/internal/platform/errors"
)

// Writer appends one JSON document per line. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	n      int
	syncFn func(*os.File) error
}

// Open opens path for appending, creating it and its parent directory.
// A file whose last byte is not a newline gets one first so a torn record
// from an earlier crash stays isolated on its own line.
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeIO, "ndjson mkdir %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "ndjson open %s", path)
	}
	w := &Writer{f: f, path: path, syncFn: (*os.File).Sync}
	if err := w.repairTail(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) repairTail() error {
	st, err := w.f.Stat()
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "ndjson stat %s", w.path)
	}
	if st.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := w.f.ReadAt(last, st.Size()-1); err != nil && err != io.EOF {
		return perr.Wrapf(err, perr.ErrorCodeIO, "ndjson read tail %s", w.path)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := w.f.Write([]byte{'\n'}); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "ndjson repair tail %s", w.path)
	}
	return nil
}

// Append marshals v and writes it as a single line, then flushes to stable storage.
// The line goes out in one write call so a record is never interleaved with another.
func (w *Writer) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "ndjson marshal")
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return perr.IOf("ndjson append to closed writer %s", w.path)
	}
	if _, err := w.f.Write(b); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "ndjson write %s", w.path)
	}
	if err := w.syncFn(w.f); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "ndjson sync %s", w.path)
	}
	w.n++
	return nil
}

// Count returns how many records this Writer appended
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Path returns the file path
func (w *Writer) Path() string { return w.path }

// Close closes the file; further Appends fail
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
