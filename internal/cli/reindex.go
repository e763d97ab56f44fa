package cli

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/config"
)

func newReindexCmd() *cobra.Command {
	var (
		base      string
		stackName string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Reassign fresh Change-Ids to the commits ahead of the base branch",
		Long: `Reindex closes the merge requests of the commits ahead of the base
branch, strips their Change-Id trailers, and rewrites them with fresh
identities starting at position 1. Use it when a stack's identity is
beyond repair.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), stackName, dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			if base == "" {
				base = config.BaseBranch(app.gitDir)
			}
			return app.engine.Reindex(cmd.Context(), base)
		},
	}

	cmd.Flags().StringVarP(&base, "base", "b", "", "Base branch (defaults to the repository configuration)")
	cmd.Flags().StringVar(&stackName, "stack-name", "", "Stack name for the reassigned identities")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without changing anything")

	return cmd
}
