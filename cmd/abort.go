// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abort the migration currently in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Aborting migration...").Start()
			if err := e.Abort(ctx); err != nil {
				sp.Fail(fmt.Sprintf("Failed to abort migration: %s", err))
				return err
			}
			sp.Success("Migration aborted")
			return nil
		},
	}
}
