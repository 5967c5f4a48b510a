// Package manager owns the run-wide state for one experiment run: the
// records created so far, the shared artifact table, run identity (name,
// number, timestamp, id), cache naming, and the trace/overwrite flags that
// the stage machinery and the planner consult.
//
// The manager never executes stages and never walks the graph itself; it
// hands its records and artifact table to the dag package and hands the
// resulting execution list back to the stage machinery as a set of forced
// pairs.
package manager

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ORNL/curifactory-go/internal/dag"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/record"
)

// Config carries the inputs needed to start a run. Zero values are usable
// for tests; the CLI fills this from the project configuration.
type Config struct {
	// ExperimentName prefixes every cache entry and run reference.
	ExperimentName string

	// CacheDir is the directory cache entries are written under.
	CacheDir string

	// RunNumber is the 1-based sequence number for this experiment name,
	// normally assigned by the run registry.
	RunNumber int

	// Overwrite forces every stage to recompute.
	Overwrite bool

	// OverwriteStages names individual stages forced to recompute.
	OverwriteStages []string

	// DryCache runs stages without writing anything to the cache.
	// Existing cache entries are still read.
	DryCache bool

	// Logger receives run progress. Defaults to slog.Default.
	Logger *slog.Logger
}

// Manager is the mutable state of one run. Not safe for concurrent use; a
// run is single-threaded by construction.
type Manager struct {
	ExperimentName string
	CacheDir       string
	RunNumber      int
	RunTimestamp   time.Time
	RunID          string

	// TraceMode disables stage bodies. The stage machinery checks this
	// flag inside the one invocation path; there is no second code path
	// for tracing.
	TraceMode bool

	Overwrite       bool
	OverwriteStages map[string]bool
	DryCache        bool

	Records   []*record.Record
	Artifacts *record.ArtifactTable

	logger    *slog.Logger
	tolerated []dag.StagePair
	planned   map[dag.StagePair]bool
}

func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	overwriteStages := make(map[string]bool, len(cfg.OverwriteStages))
	for _, name := range cfg.OverwriteStages {
		overwriteStages[name] = true
	}
	return &Manager{
		ExperimentName:  cfg.ExperimentName,
		CacheDir:        cfg.CacheDir,
		RunNumber:       cfg.RunNumber,
		RunTimestamp:    time.Now(),
		RunID:           uuid.NewString(),
		Overwrite:       cfg.Overwrite,
		OverwriteStages: overwriteStages,
		DryCache:        cfg.DryCache,
		Artifacts:       record.NewArtifactTable(),
		logger:          logger,
	}
}

func (m *Manager) Logger() *slog.Logger { return m.logger }

// Reference returns the unique-per-run reference name,
// {experiment}_{number}_{timestamp}.
func (m *Manager) Reference() string {
	return fmt.Sprintf("%s_%d_%s",
		m.ExperimentName, m.RunNumber, m.RunTimestamp.Format("2006-01-02-T150405"))
}

// NewRecord creates a record bound to the given parameter set (nil for a
// manual context) and registers it with the run.
func (m *Manager) NewRecord(set params.ParamSet) *record.Record {
	rec := record.New(set)
	m.Records = append(m.Records, rec)
	return rec
}

// Adopt registers an externally created record, typically a MakeCopy result
// or an aggregate marker. Returns its record index.
func (m *Manager) Adopt(rec *record.Record) int {
	m.Records = append(m.Records, rec)
	return len(m.Records) - 1
}

// RecordIndex returns the index of a registered record.
func (m *Manager) RecordIndex(rec *record.Record) (int, error) {
	for i, candidate := range m.Records {
		if candidate == rec {
			return i, nil
		}
	}
	return -1, fmt.Errorf("record %q is not registered with this run", rec.Name())
}

// ArtifactPath returns the cache path for one named output,
// {cacheDir}/{experiment}_{hash}_{stage}_{artifact}. The cacher appends its
// own format suffix. The record hash pins the path to the parameter set, so
// distinct parameter sets never collide.
func (m *Manager) ArtifactPath(rec *record.Record, stageName, artifactName string) (string, error) {
	hash, err := rec.Hash()
	if err != nil {
		return "", fmt.Errorf("cache path for %s/%s: %w", stageName, artifactName, err)
	}
	name := fmt.Sprintf("%s_%s_%s_%s", m.ExperimentName, hash, stageName, artifactName)
	return filepath.Join(m.CacheDir, name), nil
}

// TolerateMissing marks one stage invocation as allowed to have unresolved
// inputs, either because the stage suppresses missing inputs or because the
// caller supplied the value directly.
func (m *Manager) TolerateMissing(pair dag.StagePair) {
	m.tolerated = append(m.tolerated, pair)
}

// MapRecords builds the dependency graph over everything traced so far.
func (m *Manager) MapRecords() *dag.DAG {
	d := dag.New(m.Records, m.Artifacts)
	for _, pair := range m.tolerated {
		d.TolerateMissing(pair)
	}
	return d
}

// PlanningContext packages the run's overwrite flags for the planner.
func (m *Manager) PlanningContext() dag.PlanningContext {
	return dag.PlanningContext{
		OverwriteStages: m.OverwriteStages,
		OverwriteAll:    m.Overwrite,
	}
}

// SetPlanned records the planner's execution list. During the real pass a
// planned stage runs even when its cache entries exist.
func (m *Manager) SetPlanned(list []dag.StagePair) {
	m.planned = make(map[dag.StagePair]bool, len(list))
	for _, pair := range list {
		m.planned[pair] = true
	}
}

// Planned reports whether planning ran and selected this pair. Before
// SetPlanned is called, no pair is planned and stages fall back to their
// local cache check.
func (m *Manager) Planned(pair dag.StagePair) bool {
	return m.planned[pair]
}

// HasPlan reports whether an execution list has been installed.
func (m *Manager) HasPlan() bool { return m.planned != nil }

// Reset clears the traced records, artifact table, and tolerated pairs,
// keeping run identity and flags. Called between the trace pass and the
// real pass so the real pass rebuilds records from scratch.
func (m *Manager) Reset() {
	m.Records = nil
	m.Artifacts = record.NewArtifactTable()
	m.tolerated = nil
}
