package record

import "fmt"

// MissingArtifact is the index recorded for a stage input that had no
// producing artifact at trace time.
const MissingArtifact = -1

// Artifact is one entry in the run's artifact table: a named value produced
// by one stage invocation under one record.
type Artifact struct {
	// RecordIndex locates the producing record in the run's record list.
	RecordIndex int

	// StageName is the stage that produced this artifact.
	StageName string

	// Name is the declared output name.
	Name string

	// Cached reports whether a cache entry for this artifact existed when the
	// cache-state snapshot was taken. The planner treats this as a snapshot,
	// never a live re-check.
	Cached bool

	// Path is the resolved cache path, when the owning stage declared a
	// cacher for this output.
	Path string
}

// ArtifactTable is the flat, append-only registry of every artifact
// referenced across all records in a run.
type ArtifactTable struct {
	entries []Artifact
}

// NewArtifactTable returns an empty table.
func NewArtifactTable() *ArtifactTable {
	return &ArtifactTable{}
}

// Add appends an entry and returns its index.
func (t *ArtifactTable) Add(a Artifact) int {
	t.entries = append(t.entries, a)
	return len(t.entries) - 1
}

// Get returns the entry at index.
func (t *ArtifactTable) Get(index int) (Artifact, error) {
	if index < 0 || index >= len(t.entries) {
		return Artifact{}, fmt.Errorf("artifact index %d out of range (table has %d entries)", index, len(t.entries))
	}
	return t.entries[index], nil
}

// MustGet is like Get but panics on a bad index. Use only when the index is
// known to have come from this table.
func (t *ArtifactTable) MustGet(index int) Artifact {
	a, err := t.Get(index)
	if err != nil {
		panic(err)
	}
	return a
}

// SetCached records the cache-state snapshot for one artifact.
func (t *ArtifactTable) SetCached(index int, cached bool, path string) error {
	if index < 0 || index >= len(t.entries) {
		return fmt.Errorf("artifact index %d out of range (table has %d entries)", index, len(t.entries))
	}
	t.entries[index].Cached = cached
	t.entries[index].Path = path
	return nil
}

// Len returns the number of entries.
func (t *ArtifactTable) Len() int { return len(t.entries) }
