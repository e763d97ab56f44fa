package cli

import (
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the identity of the commit at HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), "", false)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.engine.Show()
		},
	}

	return cmd
}
