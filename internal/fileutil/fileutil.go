// Package fileutil wraps afero so file access in tests can run against an
// in-memory filesystem instead of touching disk, and adds a small
// fsnotify-backed directory watcher for callers that need to react to
// on-disk changes.
package fileutil

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/dreamware/substrate/internal/pathutil"
)

// FS wraps an afero.Fs, confining all paths passed to it to root.
type FS struct {
	fs   afero.Fs
	root string
}

// NewOS returns an FS backed by the real filesystem, rooted at root.
func NewOS(root string) *FS {
	return &FS{fs: afero.NewOsFs(), root: root}
}

// NewMem returns an FS backed by an in-memory filesystem, rooted at root.
// Intended for tests.
func NewMem(root string) *FS {
	return &FS{fs: afero.NewMemMapFs(), root: root}
}

// ErrPathEscapesRoot is returned by any FS method given a path that
// resolves outside the FS's root.
var ErrPathEscapesRoot = fmt.Errorf("fileutil: path escapes root")

func (f *FS) resolve(path string) (string, error) {
	full := pathutil.Join(f.root, path)
	if !pathutil.Contains(f.root, full) {
		return "", ErrPathEscapesRoot
	}
	return full, nil
}

// ReadFile reads path relative to the FS's root.
func (f *FS) ReadFile(path string) ([]byte, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(f.fs, full)
}

// WriteFile writes data to path relative to the FS's root, creating parent
// directories as needed.
func (f *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(pathutil.Join(full, ".."), 0o755); err != nil {
		return fmt.Errorf("fileutil: mkdir for %s: %w", path, err)
	}
	return afero.WriteFile(f.fs, full, data, perm)
}

// Exists reports whether path relative to the FS's root exists.
func (f *FS) Exists(path string) (bool, error) {
	full, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	return afero.Exists(f.fs, full)
}

// Watcher reports filesystem events under a real (non-afero) directory;
// afero's in-memory filesystem has no OS-level notification source to
// watch, so Watcher only makes sense paired with NewOS.
type Watcher struct {
	w *fsnotify.Watcher
}

// NewWatcher starts watching dir for create/write/remove/rename events.
func NewWatcher(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fileutil: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("fileutil: watch %s: %w", dir, err)
	}
	return &Watcher{w: w}, nil
}

// Events returns the channel of filesystem change events.
func (w *Watcher) Events() <-chan fsnotify.Event {
	return w.w.Events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.w.Errors
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}
