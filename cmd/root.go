// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/db-tools-oss/reshape/cmd/flags"
	"github.com/db-tools-oss/reshape/pkg/engine"
)

// Version is the reshape version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("RESHAPE")
	viper.AutomaticEnv()

	flags.PgConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "reshape",
	Short:        "Zero-downtime, reversible schema migrations for Postgres",
	SilenceUsage: true,
	Version:      Version,
}

// NewEngine builds the engine used by every subcommand from the
// flags/environment the user supplied.
func NewEngine(ctx context.Context) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLockTimeoutMs(flags.LockTimeout()),
		engine.WithLogger(engine.NewLogger()),
		engine.WithEngineVersion(Version),
	}
	if flags.NoWait() {
		opts = append(opts, engine.WithNoWait())
	}

	e, err := engine.New(ctx, flags.PostgresURL(), flags.Schema(), opts...)
	if err != nil {
		return nil, err
	}

	switch compat, err := e.CheckVersionCompatibility(ctx); {
	case err != nil:
		e.Close()
		return nil, err
	case compat == engine.VersionCompatEngineOlder:
		pterm.Warning.Println("this reshape binary is older than the one that last wrote this schema's history; some actions may not be understood")
	}

	return e, nil
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(abortCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(schemaQueryCmd())

	return rootCmd.Execute()
}
