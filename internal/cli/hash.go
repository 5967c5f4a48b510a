package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ORNL/curifactory-go/internal/config"
	"github.com/ORNL/curifactory-go/internal/params"
)

// hashEntry is one parameter set's cache identity.
type hashEntry struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// NewHashCommand creates the hash command: print the cache hash of every
// set in a parameter file, without running anything.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash <params-file>",
		Short: "Print the cache hash of each parameter set in a CUE file",
		Long: `Print the content hash each parameter set resolves to. Cache entries
are named by these hashes, so this maps parameter values to cache files
and back.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHashes(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func printHashes(cmd *cobra.Command, opts *RootOptions, file string) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	sets, err := loadParamSets(cfg, file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load parameter file", err)
	}

	entries := make([]hashEntry, 0, len(sets))
	for _, set := range sets {
		hash, err := params.Hash(set)
		if err != nil {
			return WrapExitError(ExitFailure,
				fmt.Sprintf("failed to hash parameter set %q", set.ParamName()), err)
		}
		entries = append(entries, hashEntry{Name: set.ParamName(), Hash: hash})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	for _, entry := range entries {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", entry.Name, entry.Hash)
	}
	return nil
}
