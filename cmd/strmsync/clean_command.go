package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every pointer and sidecar and reset sync state",
		Long: "Remove all .strm pointers and NFO sidecars from the movie and series roots, " +
			"drop the catalog snapshots, and suppress scheduled runs until the next " +
			"manual 'strmsync run'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("clean deletes the whole library; pass --yes to confirm")
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				removed, err := a.service.CleanLibrary(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed, "suppressed": true})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d pointer file(s)\n", removed)
				fmt.Fprintln(out, "Scheduled runs are suppressed until the next 'strmsync run'")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm deletion of the library contents")
	return cmd
}
