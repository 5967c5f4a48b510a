package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyCachers rejects an explicitly empty cacher list. An empty list
	// has nothing that could be un-cached and would unconditionally
	// short-circuit every run, so it is always a configuration mistake.
	ErrEmptyCachers = errors.New("empty cacher list: a stage with no cachers must pass nil, not an empty slice")

	// ErrCachersMismatch rejects a cacher list whose length differs from the
	// stage's output list. Caching is all or nothing per stage.
	ErrCachersMismatch = errors.New("cacher count does not match output count")
)

// Cacher is one caching strategy bound to one declared stage output.
//
// Check must answer truthfully before the planner's cache-state snapshot is
// taken; the planner never re-probes during the walk.
type Cacher interface {
	// SetPath binds the cache path, appending the strategy's extension when
	// missing. Returns the final path.
	SetPath(path string) string

	// Path returns the bound cache path.
	Path() string

	// Check reports whether a complete cache entry exists at the bound path.
	// It is a fast, non-retried probe; it must never report a partially
	// written entry as existing.
	Check() bool

	// Load reads the cached value.
	Load() (any, error)

	// Save writes the value to the bound path.
	Save(value any) error
}

// ValidateCachers enforces the trace-time cacher configuration rules. A nil
// cacher list (stage opts out of caching) is valid; an empty one is not.
func ValidateCachers(outputs []string, cachers []Cacher) error {
	if cachers == nil {
		return nil
	}
	if len(cachers) == 0 {
		return ErrEmptyCachers
	}
	if len(cachers) != len(outputs) {
		return fmt.Errorf("%w: %d cachers for %d outputs", ErrCachersMismatch, len(cachers), len(outputs))
	}
	return nil
}

// fileCacher carries the path handling shared by file-backed strategies.
// Concrete cachers embed it and provide Load/Save.
type fileCacher struct {
	path      string
	extension string
}

func (f *fileCacher) SetPath(path string) string {
	if !strings.HasSuffix(path, f.extension) {
		path += f.extension
	}
	f.path = path
	return f.path
}

func (f *fileCacher) Path() string { return f.path }

func (f *fileCacher) Check() bool {
	if f.path == "" {
		return false
	}
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// writeAtomic stages content in a temp file beside the target and renames it
// into place, so an aborted run leaves no entry at the final path.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cf-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
