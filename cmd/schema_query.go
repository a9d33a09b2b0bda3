// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func schemaQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "generate-schema-query <migration-name>",
		Short:     "Print the SQL a client session runs to adopt a migration's schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"migration-name"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Println(e.SchemaQueryForMigration(args[0]))
			return nil
		},
	}
}
