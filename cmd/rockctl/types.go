package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

func newTypesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List or add rock types",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rock types in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector, err := opts.container(cmd, false)
			if err != nil {
				return err
			}
			defer shutdown(injector, cmd.ErrOrStderr())

			types, err := do.MustInvoke[*service.TypeService](injector).List(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			tw := p.table()
			fmt.Fprintln(tw, "ID\tLABEL")
			for _, t := range types {
				fmt.Fprintf(tw, "%d\t%s\n", t.ID, t.Label)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add LABEL...",
		Short: "Add rock types; labels are title-cased",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			injector, err := opts.container(cmd, false)
			if err != nil {
				return err
			}
			defer shutdown(injector, cmd.ErrOrStderr())

			types := do.MustInvoke[*service.TypeService](injector)
			for _, label := range args {
				t, err := types.Add(cmd.Context(), label)
				if err != nil {
					return fmt.Errorf("add %q: %w", label, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added type %d %s\n", t.ID, t.Label)
			}
			return nil
		},
	})

	return cmd
}
