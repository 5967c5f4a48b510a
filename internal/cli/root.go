// Package cli implements the curifactory command line: running registered
// experiments, printing the traced run map, listing run history, and
// inspecting parameter-set hashes.
package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ORNL/curifactory-go/internal/experiment"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// App carries the experiments a binary has registered. The run and map
// commands look pipelines up here by name.
type App struct {
	pipelines map[string]experiment.Pipeline
}

func NewApp() *App {
	return &App{pipelines: make(map[string]experiment.Pipeline)}
}

// Register adds a named experiment pipeline. Registering a duplicate name
// panics; experiment names are compile-time identifiers, not user input.
func (a *App) Register(name string, pipeline experiment.Pipeline) {
	if _, exists := a.pipelines[name]; exists {
		panic(fmt.Sprintf("experiment %q registered twice", name))
	}
	a.pipelines[name] = pipeline
}

// Pipeline looks up a registered experiment.
func (a *App) Pipeline(name string) (experiment.Pipeline, bool) {
	p, ok := a.pipelines[name]
	return p, ok
}

// ExperimentNames returns registered experiment names, sorted.
func (a *App) ExperimentNames() []string {
	names := make([]string, 0, len(a.pipelines))
	for name := range a.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRootCommand creates the root command for the curifactory CLI.
func NewRootCommand(app *App) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "curifactory",
		Short: "Reproducible experiment runner",
		Long: "Run experiments with per-stage content-addressed caching: " +
			"re-running a pipeline recomputes only the stages whose inputs actually changed.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "curifactory.yaml", "path to project config")

	cmd.AddCommand(NewRunCommand(app, opts))
	cmd.AddCommand(NewMapCommand(app, opts))
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
