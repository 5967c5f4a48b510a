package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ORNL/curifactory-go/internal/config"
	"github.com/ORNL/curifactory-go/internal/experiment"
	"github.com/ORNL/curifactory-go/internal/manager"
	"github.com/ORNL/curifactory-go/internal/params"
	"github.com/ORNL/curifactory-go/internal/paramfile"
	"github.com/ORNL/curifactory-go/internal/registry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ParamsFile      string
	Overwrite       bool
	OverwriteStages []string
	Indices         []int
	CacheDir        string
	DryCache        bool
	NoRegistry      bool
}

// NewRunCommand creates the run command.
func NewRunCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <experiment>",
		Short: "Run a registered experiment",
		Long: `Run a registered experiment against the parameter sets in a CUE
parameter file. Stages with valid cache entries are served from cache;
everything else executes and is cached for the next run.

Example:
  curifactory run train -p params/baseline.cue
  curifactory run train -p baseline --overwrite-stage clean_data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, app, opts, args[0], false)
		},
	}

	addRunFlags(cmd, opts)
	return cmd
}

// NewMapCommand creates the map command: trace and plan, execute nothing.
func NewMapCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "map <experiment>",
		Short: "Print an experiment's stage graph and execution plan without running it",
		Long: `Trace the experiment pipeline with stage bodies disabled, print every
record's stages with per-artifact cache status, and print the list of
stages a real run would execute.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, app, opts, args[0], true)
		},
	}

	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVarP(&opts.ParamsFile, "params", "p", "", "CUE parameter file, a path or a bare name under params_dir (required)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "force every stage to recompute")
	cmd.Flags().StringSliceVar(&opts.OverwriteStages, "overwrite-stage", nil, "stage names to force recompute (repeatable)")
	cmd.Flags().IntSliceVar(&opts.Indices, "indices", nil, "restrict to these parameter-set indices")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "override the configured cache directory")
	cmd.Flags().BoolVar(&opts.DryCache, "dry-cache", false, "run without writing anything to the cache")
	cmd.Flags().BoolVar(&opts.NoRegistry, "no-registry", false, "skip recording the run in the registry")
	_ = cmd.MarkFlagRequired("params")
}

func runExperiment(cmd *cobra.Command, app *App, opts *RunOptions, name string, mapOnly bool) error {
	configureLogging(opts.Verbose)

	pipeline, ok := app.Pipeline(name)
	if !ok {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown experiment %q (registered: %s)", name, strings.Join(app.ExperimentNames(), ", ")))
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cacheDir := cfg.CacheDir
	if opts.CacheDir != "" {
		cacheDir = opts.CacheDir
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create cache directory", err)
	}

	sets, err := loadParamSets(cfg, opts.ParamsFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load parameter file", err)
	}
	slog.Info("parameter sets loaded", "file", opts.ParamsFile, "sets", len(sets))

	runOpts := experiment.Options{Indices: opts.Indices, MapOnly: mapOnly}
	runNumber := 1
	if !opts.NoRegistry {
		if err := os.MkdirAll(filepath.Dir(cfg.RegistryPath), 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create registry directory", err)
		}
		reg, err := registry.Open(cfg.RegistryPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open registry", err)
		}
		defer func() {
			if closeErr := reg.Close(); closeErr != nil {
				slog.Error("error closing registry", "error", closeErr)
			}
		}()
		runOpts.Registry = reg
		if runNumber, err = reg.NextRunNumber(cmd.Context(), name); err != nil {
			return WrapExitError(ExitCommandError, "failed to determine run number", err)
		}
	}

	mgr := manager.New(manager.Config{
		ExperimentName:  name,
		CacheDir:        cacheDir,
		RunNumber:       runNumber,
		Overwrite:       opts.Overwrite,
		OverwriteStages: opts.OverwriteStages,
		DryCache:        opts.DryCache,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := experiment.Run(ctx, mgr, sets, pipeline, runOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if mapOnly {
		return printRunMap(formatter, result)
	}
	return formatter.Successf(result, "%s complete: %d stage(s) executed", result.Reference, len(result.Plan))
}

func printRunMap(f *OutputFormatter, result *experiment.Result) error {
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprint(f.Writer, result.RunMap)
	fmt.Fprintf(f.Writer, "\nExecution plan (%d stage(s)):\n", len(result.Plan))
	for _, pair := range result.Plan {
		fmt.Fprintf(f.Writer, "\t%s\n", pair)
	}
	return nil
}

// loadParamSets resolves the params flag as a path first, then as a bare
// name under the configured params directory.
func loadParamSets(cfg config.Config, file string) ([]params.ParamSet, error) {
	if _, err := os.Stat(file); err == nil {
		return paramfile.LoadFile(file)
	}
	candidate := filepath.Join(cfg.ParamsDir, file)
	if !strings.HasSuffix(candidate, ".cue") {
		candidate += ".cue"
	}
	return paramfile.LoadFile(candidate)
}

func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
