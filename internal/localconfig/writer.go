// Package localconfig writes the talosconfig and kubeconfig for the local
// command-line tools.
package localconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/faulty-technology/homelab/internal/util/change"
	"github.com/faulty-technology/homelab/internal/util/digest"
)

// File names inside the output directory.
const (
	TalosconfigFile = "talosconfig"
	KubeconfigFile  = "kubeconfig"
)

// Result describes one written, or skipped, file.
type Result struct {
	Path   string
	Hash   string
	Action change.Action
}

// Writer writes files into a directory with owner-only permissions. A file
// is rewritten only when its content hash differs from the last written one.
type Writer struct {
	dir       string
	writeFile func(name string, data []byte, perm os.FileMode) error
	stat      func(name string) (os.FileInfo, error)
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, writeFile: os.WriteFile, stat: os.Stat}
}

// Path returns the full path of name.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Write stores content under name. lastHash is the hash recorded by the
// previous Write of the same file; the write is skipped when it matches and
// the file still exists.
func (w *Writer) Write(name string, content []byte, lastHash string) (Result, error) {
	path := w.Path(name)
	hash := digest.Sum(content)

	if hash == lastHash {
		_, err := w.stat(path)
		if err == nil {
			return Result{Path: path, Hash: hash, Action: change.Unchanged}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := w.writeFile(path, content, 0600); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	action := change.Updated
	if lastHash == "" {
		action = change.Created
	}
	return Result{Path: path, Hash: hash, Action: action}, nil
}
