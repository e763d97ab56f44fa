package cli

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/config"
)

func newPushCmd() *cobra.Command {
	var (
		base      string
		stackName string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the current stack and reconcile its merge requests",
		Long: `Push assigns a Change-Id to every new commit on top of the base
branch, pushes one branch per commit, and creates or updates the
chained merge requests.`,
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
			return app.engine.Push(cmd.Context(), base)
		},
	}

	cmd.Flags().StringVarP(&base, "base", "b", "", "Base branch (defaults to the repository configuration)")
	cmd.Flags().StringVar(&stackName, "stack-name", "", "Stack name used when identifying new commits")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without changing anything")

	return cmd
}
