// Package artifact renders the fragment aggregate into the generated views
// module and replaces the file on disk atomically.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/conneroisu/viewpack/internal/errors"
)

// Header is the first line of every generated artifact.
const Header = "/*** Generated by viewpack  ***  DON'T EDIT MANUALLY !!! ***/"

const exportPrefix = "export default "

// Render serializes snapshot as a default-exported mapping. Keys are sorted
// and indented by two spaces so the output is stable and diffable. Markup
// characters are left unescaped.
func Render(snapshot map[string]string) ([]byte, error) {
	if snapshot == nil {
		snapshot = map[string]string{}
	}

	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteString("\n\n")
	buf.WriteString(exportPrefix)

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}

	// Encode terminates the value with a newline.
	buf.Truncate(buf.Len() - 1)
	buf.WriteString(";\n")
	return buf.Bytes(), nil
}

// Writer persists rendered snapshots to a fixed path. A Writer is not safe
// for concurrent Write calls; the compiler is its only caller.
type Writer struct {
	path   string
	perm   os.FileMode
	writes atomic.Int64
}

// NewWriter creates a writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, perm: 0o644}
}

// Path returns the artifact path.
func (w *Writer) Path() string {
	return w.path
}

// Writes returns the number of successful writes.
func (w *Writer) Writes() int64 {
	return w.writes.Load()
}

// Write renders snapshot and replaces the artifact. The new content is written
// to a temporary file in the same directory, synced, and renamed over the
// destination, so readers see either the old or the new artifact in full. On
// failure the previous artifact is left untouched.
func (w *Writer) Write(ctx context.Context, snapshot map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Render(snapshot)
	if err != nil {
		return errors.WrapWrite(err, w.path)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWrite(err, w.path)
	}
	if err := w.writeAtomic(dir, data); err != nil {
		return errors.WrapWrite(err, w.path)
	}

	w.writes.Add(1)
	return nil
}

func (w *Writer) writeAtomic(dir string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".viewpack-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// CreateTemp uses 0600.
	if err := os.Chmod(tmpPath, w.perm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := replaceFile(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// Best effort: persist the rename itself.
	_ = syncDir(dir)
	return nil
}
