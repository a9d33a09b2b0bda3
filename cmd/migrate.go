// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/db-tools-oss/reshape/pkg/action"
)

func migrateCmd() *cobra.Command {
	var complete bool

	migrateCmd := &cobra.Command{
		Use:       "migrate <directory>",
		Short:     "Apply migrations from a directory, skipping any already applied",
		Example:   "reshape migrate ./migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"directory"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			migrations, err := loadMigrations(args[0])
			if err != nil {
				return err
			}
			if len(migrations) == 0 {
				fmt.Println("no migration files found")
				return nil
			}

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Applying migrations...").Start()
			if err := e.Migrate(ctx, migrations); err != nil {
				sp.Fail(fmt.Sprintf("Failed to apply migrations: %s", err))
				return err
			}
			sp.Success("Migrations applied")

			if complete {
				sp, _ = pterm.DefaultSpinner.WithText("Completing latest migration...").Start()
				if err := e.Complete(ctx); err != nil {
					sp.Fail(fmt.Sprintf("Failed to complete migration: %s", err))
					return err
				}
				sp.Success("Migration completed")
			}

			return nil
		},
	}

	migrateCmd.Flags().BoolVarP(&complete, "complete", "c", false, "complete the latest migration rather than leaving it active")

	return migrateCmd
}

// loadMigrations reads every migration file in dir, in lexical filename
// order, and parses it as a single migration.
func loadMigrations(dir string) ([]*action.Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []*action.Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration file %q: %w", entry.Name(), err)
		}

		m, err := action.ReadMigration(data)
		if err != nil {
			return nil, fmt.Errorf("parsing migration file %q: %w", entry.Name(), err)
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}
