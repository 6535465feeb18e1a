package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datallboy/godepot/internal/store"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the app and depot catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Import apps and depots from a JSON catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			apps, depots, err := store.DecodeCatalog(f)
			if err != nil {
				return err
			}
			if err := rt.app.Store.UpsertCatalog(cmd.Context(), apps, depots); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d apps and %d depots\n", len(apps), len(depots))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List browsable apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			apps, err := rt.app.Store.ListApps(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "APP ID\tNAME\tDIRECTORY")
			for _, a := range apps {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", a.AppID, a.Name, a.DLDir)
			}
			return tw.Flush()
		},
	})

	return cmd
}
