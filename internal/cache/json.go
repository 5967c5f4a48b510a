package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONCacher stores a value as indented JSON. Loads come back as generic
// JSON types (map[string]any, []any, float64, string, bool), so it suits
// result dictionaries and metrics rather than typed model objects.
type JSONCacher struct {
	fileCacher
}

// NewJSONCacher returns a JSON strategy with no path bound yet; the stage
// invocation binds the path from the record context.
func NewJSONCacher() *JSONCacher {
	return &JSONCacher{fileCacher{extension: ".json"}}
}

func (c *JSONCacher) Load() (any, error) {
	content, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("load json cache %q: %w", c.path, err)
	}
	var value any
	if err := json.Unmarshal(content, &value); err != nil {
		return nil, fmt.Errorf("decode json cache %q: %w", c.path, err)
	}
	return value, nil
}

func (c *JSONCacher) Save(value any) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json cache %q: %w", c.path, err)
	}
	if err := writeAtomic(c.path, content); err != nil {
		return fmt.Errorf("save json cache %q: %w", c.path, err)
	}
	return nil
}
