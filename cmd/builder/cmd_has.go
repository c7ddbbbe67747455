package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHasCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "has <alias>",
		Short: "Report whether an alias has an instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), a.Has(args[0]))
			return err
		},
	}
}
