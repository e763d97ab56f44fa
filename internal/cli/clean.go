package cli

import (
	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale stack branches and dead mapping entries",
		Long: `Clean deletes local stack branches whose merge request is gone and
drops mapping entries whose branch or review no longer exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), "", dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.engine.Clean(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without changing anything")

	return cmd
}
