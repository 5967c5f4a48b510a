package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ORNL/curifactory-go/internal/config"
	"github.com/ORNL/curifactory-go/internal/registry"
)

// LsOptions holds flags for the ls command.
type LsOptions struct {
	*RootOptions
	Experiment string
}

// NewLsCommand creates the ls command: list recorded runs.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "ls",
		Short:         "List recorded runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Experiment, "experiment", "e", "", "restrict to one experiment name")
	return cmd
}

func listRuns(cmd *cobra.Command, opts *LsOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if _, err := os.Stat(cfg.RegistryPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no registry at %s (no runs recorded yet)", cfg.RegistryPath))
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open registry", err)
	}
	defer reg.Close()

	runs, err := reg.ListRuns(cmd.Context(), opts.Experiment)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	w := tabwriter.NewWriter(formatter.Writer, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tTIMESTAMP\tSTATUS\tHOST")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			run.Reference, run.Timestamp.Format(time.RFC3339), run.Status, run.Hostname)
	}
	return w.Flush()
}
