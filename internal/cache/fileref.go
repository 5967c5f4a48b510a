package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileReferenceCacher stores a list of file paths rather than a value. The
// entry only counts as cached while every referenced file still exists, so
// deleting a referenced file invalidates the stage that produced it.
type FileReferenceCacher struct {
	fileCacher
}

// NewFileReferenceCacher returns a file-reference strategy with no path
// bound yet.
func NewFileReferenceCacher() *FileReferenceCacher {
	return &FileReferenceCacher{fileCacher{extension: ".json"}}
}

func (c *FileReferenceCacher) Check() bool {
	if !c.fileCacher.Check() {
		return false
	}
	paths, err := c.readPaths()
	if err != nil {
		return false
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Load returns the referenced paths as []string.
func (c *FileReferenceCacher) Load() (any, error) {
	paths, err := c.readPaths()
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Save accepts a []string or a single string path.
func (c *FileReferenceCacher) Save(value any) error {
	var paths []string
	switch v := value.(type) {
	case []string:
		paths = v
	case string:
		paths = []string{v}
	default:
		return fmt.Errorf("file reference cacher %q: expected string or []string, got %T", c.path, value)
	}
	content, err := json.MarshalIndent(paths, "", "  ")
	if err != nil {
		return fmt.Errorf("encode file references %q: %w", c.path, err)
	}
	if err := writeAtomic(c.path, content); err != nil {
		return fmt.Errorf("save file references %q: %w", c.path, err)
	}
	return nil
}

func (c *FileReferenceCacher) readPaths() ([]string, error) {
	content, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("load file references %q: %w", c.path, err)
	}
	var paths []string
	if err := json.Unmarshal(content, &paths); err != nil {
		return nil, fmt.Errorf("decode file references %q: %w", c.path, err)
	}
	return paths, nil
}
