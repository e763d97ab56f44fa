package cli

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the stacks known to the mapping file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), "", false)
			if err != nil {
				return err
			}
			defer app.Close()

			app.engine.List()
			return nil
		},
	}

	return cmd
}
