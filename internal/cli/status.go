package cli

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/config"
)

func newStatusCmd() *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Compare the local stack against its pushed branches and merge requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), "", false)
			if err != nil {
				return err
			}
			defer app.Close()

			if base == "" {
				base = config.BaseBranch(app.gitDir)
			}
			return app.engine.Status(cmd.Context(), base)
		},
	}

	cmd.Flags().StringVarP(&base, "base", "b", "", "Base branch (defaults to the repository configuration)")

	return cmd
}
