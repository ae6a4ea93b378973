package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/outline"
)

func newOutlineCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "outline FILE",
		Short: "Show the recovered table of contents and section tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(cmd, args[0], &o)
			if err != nil {
				return err
			}
			outline.Render(cmd.OutOrStdout(), res)
			return nil
		},
	}
	o.register(cmd)
	return cmd
}
