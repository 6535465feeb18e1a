package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datallboy/godepot/internal/settings"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the download settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(settings.AsMap(rt.settings.Snapshot()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Update settings, e.g. os_list=windows,linux download_location=/srv/games",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}

			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.settings.Update(values); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings updated.")
			return nil
		},
	})

	return cmd
}

func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want KEY=VALUE", arg)
		}
		values[key] = val
	}
	return values, nil
}
