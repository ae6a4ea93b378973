package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var o runOptions
	var output string

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a document to structured XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(cmd, args[0], &o)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			out, err := res.XML()
			if err != nil {
				return fmt.Errorf("serialize: %w", err)
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d sections, strategy %s)\n", output, res.Tree.Count(), res.Strategy)
			return nil
		},
	}
	o.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write XML to this file instead of stdout")
	return cmd
}
