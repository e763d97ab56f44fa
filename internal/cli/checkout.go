package cli

import (
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "checkout <stack>",
		Short: "Check out the latest branch of a named stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), "", dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.engine.Checkout(cmd.Context(), args[0])
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without changing anything")

	return cmd
}
