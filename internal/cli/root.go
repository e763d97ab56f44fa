// Package cli is the cobra front end: it parses commands and flags,
// assembles the engine, and maps engine errors to exit codes.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verbose bool

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "git-stack",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Short:   "git-stack manages stacked merge requests",
		Long: `git-stack manages stacked merge requests.

Each commit on top of the base branch becomes its own branch and review
request, chained onto the previous one. A stable Change-Id trailer in
every commit message ties the commit to its review across amends and
rebases.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")

	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newReindexCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCheckoutCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}
