// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	var yes bool

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove all reshape-managed namespaces and state, leaving tables untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !yes {
				confirmed, _ := pterm.DefaultInteractiveConfirm.
					WithDefaultText("This drops every migration namespace and reshape's own state. Continue?").
					WithDefaultValue(false).
					Show()
				if !confirmed {
					return nil
				}
			}

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Removing reshape state...").Start()
			if err := e.Remove(ctx); err != nil {
				sp.Fail(fmt.Sprintf("Failed to remove reshape state: %s", err))
				return err
			}
			sp.Success("Reshape state removed")
			return nil
		},
	}

	removeCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return removeCmd
}
