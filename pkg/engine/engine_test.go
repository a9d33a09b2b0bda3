// SPDX-License-Identifier: Apache-2.0

package engine_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/db-tools-oss/reshape/internal/testutils"
	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/engine"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func strPtr(s string) *string { return &s }

func createUsersMigration() *action.Migration {
	return action.NewMigration("1_create_users", nil).WithAction(&action.CreateTable{
		Name: "users",
		Columns: []action.Column{
			action.NewColumn("id", "serial").WithPrimaryKey(),
			action.NewColumn("name", "text"),
		},
		PrimaryKey: []string{"id"},
	})
}

// TestMigrateProjectsBothSchemasSimultaneously covers scenario S1's
// identity-projection case: a rename of "name" to "full_name" must let an
// old-schema session keep reading and writing through "name" while a
// new-schema session sees "full_name", with both observing the same
// underlying row. A pure rename short-circuits before any trigger is
// installed; TestAlterColumnProjectsBidirectionalWrites below covers the
// trigger-backed case where up/down genuinely transform the value.
func TestMigrateProjectsBothSchemasSimultaneously(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		_, err := db.ExecContext(ctx, "INSERT INTO users (name) VALUES ('alice')")
		require.NoError(t, err)

		rename := action.NewMigration("2_rename_name", nil).WithAction(&action.AlterColumn{
			Table:   "users",
			Column:  "name",
			Changes: action.ColumnChanges{Name: strPtr("full_name")},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, rename}))

		oldConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer oldConn.Close()
		runSchemaQueryOnConn(t, oldConn, e.SchemaQueryForMigration("1_create_users"))
		var oldName string
		require.NoError(t, oldConn.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 1").Scan(&oldName))
		assert.Equal(t, "alice", oldName)

		newConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer newConn.Close()
		runSchemaQueryOnConn(t, newConn, e.SchemaQueryForMigration("2_rename_name"))
		var newName string
		require.NoError(t, newConn.QueryRowContext(ctx, "SELECT full_name FROM users WHERE id = 1").Scan(&newName))
		assert.Equal(t, "alice", newName)
	})
}

// TestAlterColumnProjectsBidirectionalWrites covers scenario S1's
// transforming case: an AlterColumn with non-identity up/down expressions
// must backfill existing rows, project new writes through either view in
// both directions, and in particular must apply the down expression to a
// write landing through the new view and have it visible in the old view.
func TestAlterColumnProjectsBidirectionalWrites(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		_, err := db.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (1, 'alice')")
		require.NoError(t, err)

		upper := action.NewMigration("2_upper_name", nil).WithAction(&action.AlterColumn{
			Table:   "users",
			Column:  "name",
			Up:      strPtr("UPPER(name)"),
			Down:    strPtr("LOWER(name)"),
			Changes: action.ColumnChanges{Type: strPtr("text")},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, upper}))

		newConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer newConn.Close()
		runSchemaQueryOnConn(t, newConn, e.SchemaQueryForMigration("2_upper_name"))

		// The backfill must have upper-cased the pre-existing row.
		var backfilled string
		require.NoError(t, newConn.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 1").Scan(&backfilled))
		assert.Equal(t, "ALICE", backfilled)

		oldConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer oldConn.Close()
		runSchemaQueryOnConn(t, oldConn, e.SchemaQueryForMigration("1_create_users"))

		// A write through the old view must still project up through the new.
		_, err = oldConn.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (2, 'bob')")
		require.NoError(t, err)
		var viaOld string
		require.NoError(t, newConn.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 2").Scan(&viaOld))
		assert.Equal(t, "BOB", viaOld)

		// A write through the new view must project down through the old: the
		// down trigger branch must read the shadow column it just wrote, not
		// the stale/unset original column.
		_, err = newConn.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (3, 'TEST TESTSSON')")
		require.NoError(t, err)
		var viaNew string
		require.NoError(t, oldConn.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 3").Scan(&viaNew))
		assert.Equal(t, "test testsson", viaNew)
	})
}

// TestMigrateSetNotNullBackfillsDefault covers scenario S2: tightening a
// column to NOT NULL with an up expression backfills existing NULLs before
// the constraint is validated.
func TestMigrateSetNotNullBackfillsDefault(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		_, err := db.ExecContext(ctx, "INSERT INTO users (name) VALUES (NULL)")
		require.NoError(t, err)

		notNull := false
		tighten := action.NewMigration("2_name_not_null", nil).WithAction(&action.AlterColumn{
			Table:  "users",
			Column: "name",
			Up:     strPtr("COALESCE(name, 'unknown')"),
			Down:   strPtr("name"),
			Changes: action.ColumnChanges{
				Nullable: &notNull,
			},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, tighten}))
		require.NoError(t, e.Complete(ctx))

		var name string
		require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 1").Scan(&name))
		assert.Equal(t, "unknown", name)

		var isNullable string
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT is_nullable FROM information_schema.columns
			WHERE table_name = 'users' AND column_name = 'name'
		`).Scan(&isNullable))
		assert.Equal(t, "NO", isNullable)
	})
}

// TestMigrateRenameOnlyDoesNotAddPhysicalColumn covers scenario S3: a pure
// rename projects the new logical name without creating a shadow column.
func TestMigrateRenameOnlyDoesNotAddPhysicalColumn(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		rename := action.NewMigration("2_rename_name", nil).WithAction(&action.AlterColumn{
			Table:   "users",
			Column:  "name",
			Changes: action.ColumnChanges{Name: strPtr("full_name")},
		})

		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, rename}))

		var count int
		require.NoError(t, db.QueryRowContext(context.Background(), `
			SELECT count(*) FROM information_schema.columns WHERE table_name = 'users'
		`).Scan(&count))
		assert.Equal(t, 2, count) // id, name -- no shadow column added
	})
}

// TestMigrateComposesChainedAlterColumns covers scenario S4: two successive
// AlterColumns on the same column within one migration compose their
// up/down expressions rather than stacking two shadow columns.
func TestMigrateComposesChainedAlterColumns(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := action.NewMigration("1_create_items", nil).WithAction(&action.CreateTable{
			Name:       "items",
			Columns:    []action.Column{action.NewColumn("id", "serial").WithPrimaryKey(), action.NewColumn("counter", "int").WithDefault("0")},
			PrimaryKey: []string{"id"},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		_, err := db.ExecContext(ctx, "INSERT INTO items (counter) VALUES (100)")
		require.NoError(t, err)

		chained := action.NewMigration("2_bump_counter_twice", nil).
			WithAction(&action.AlterColumn{
				Table: "items", Column: "counter",
				Up: strPtr("counter+1"), Down: strPtr("counter-1"),
				Changes: action.ColumnChanges{Type: strPtr("int")},
			}).
			WithAction(&action.AlterColumn{
				Table: "items", Column: "counter",
				Up: strPtr("counter+1"), Down: strPtr("counter-1"),
				Changes: action.ColumnChanges{Type: strPtr("int")},
			})

		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, chained}))

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT count(*) FROM information_schema.columns WHERE table_name = 'items'
		`).Scan(&count))
		assert.Equal(t, 3, count) // id, counter, one shadow column

		newConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer newConn.Close()
		runSchemaQueryOnConn(t, newConn, e.SchemaQueryForMigration("2_bump_counter_twice"))
		var newVal int
		require.NoError(t, newConn.QueryRowContext(ctx, "SELECT counter FROM items WHERE id = 1").Scan(&newVal))
		assert.Equal(t, 102, newVal)

		// Writing through the new view exercises the composed down
		// expression down1(down2(col)) = (counter-1)-1, which must be
		// visible reading back through the old view.
		_, err = newConn.ExecContext(ctx, "INSERT INTO items (id, counter) VALUES (2, 50)")
		require.NoError(t, err)

		oldConn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer oldConn.Close()
		runSchemaQueryOnConn(t, oldConn, e.SchemaQueryForMigration("1_create_items"))
		var oldVal int
		require.NoError(t, oldConn.QueryRowContext(ctx, "SELECT counter FROM items WHERE id = 2").Scan(&oldVal))
		assert.Equal(t, 48, oldVal)
	})
}

// TestMigrateDefaultOnlyChangeSkipsUpDown covers scenario S5: a default-only
// ColumnChanges requires no up/down expressions, installs no shadow column
// or trigger, auto-completes, and takes effect on the physical column
// immediately.
func TestMigrateDefaultOnlyChangeSkipsUpDown(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		def := "'anonymous'"
		changeDefault := action.NewMigration("2_default_name", nil).WithAction(&action.AlterColumn{
			Table:   "users",
			Column:  "name",
			Changes: action.ColumnChanges{Default: &def},
		})

		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, changeDefault}))

		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT count(*) FROM information_schema.columns WHERE table_name = 'users'
		`).Scan(&count))
		assert.Equal(t, 2, count) // id, name -- no shadow column added

		var colDefault sql.NullString
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT column_default FROM information_schema.columns
			WHERE table_name = 'users' AND column_name = 'name'
		`).Scan(&colDefault))
		assert.Equal(t, "'anonymous'::text", colDefault.String)

		_, err = db.ExecContext(ctx, "INSERT INTO users (id) VALUES (5)")
		require.NoError(t, err)
		var name string
		require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM users WHERE id = 5").Scan(&name))
		assert.Equal(t, "anonymous", name)
	})
}

// TestCompleteRebuildsIndexUnderOriginalName covers scenario S6: an index
// on an altered column survives Complete under its original name.
func TestCompleteRebuildsIndexUnderOriginalName(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		_, err := db.ExecContext(ctx, "CREATE INDEX idx_users_name ON users (name)")
		require.NoError(t, err)

		alter := action.NewMigration("2_alter_name", nil).WithAction(&action.AlterColumn{
			Table: "users", Column: "name",
			Up: strPtr("name"), Down: strPtr("name"),
			Changes: action.ColumnChanges{Type: strPtr("text")},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, alter}))
		require.NoError(t, e.Complete(ctx))

		var exists bool
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE tablename = 'users' AND indexname = 'idx_users_name')
		`).Scan(&exists))
		assert.True(t, exists)
	})
}

// TestCompleteLeavesOnlyFinalNamespace verifies the cleanup property: after
// Complete, only the final migration's namespace survives, and no
// projection trigger remains.
func TestCompleteLeavesOnlyFinalNamespace(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		rename := action.NewMigration("2_rename_name", nil).WithAction(&action.AlterColumn{
			Table:   "users",
			Column:  "name",
			Changes: action.ColumnChanges{Name: strPtr("full_name")},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, rename}))

		// Both actions report CompleteAutomatically, so Migrate already
		// finalized the chain; a further Complete call has nothing to do.
		assert.ErrorIs(t, e.Complete(ctx), engine.ErrNothingToComplete)

		var namespaces []string
		rows, err := db.QueryContext(ctx, `
			SELECT nspname FROM pg_catalog.pg_namespace WHERE nspname LIKE 'migration_%'
		`)
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var ns string
			require.NoError(t, rows.Scan(&ns))
			namespaces = append(namespaces, ns)
		}
		assert.Equal(t, []string{"migration_2_rename_name"}, namespaces)

		var triggerCount int
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT count(*) FROM pg_trigger WHERE tgname LIKE '%reshape%'
		`).Scan(&triggerCount))
		assert.Equal(t, 0, triggerCount)
	})
}

// TestAbortRollsBackInProgressMigration covers the abort lifecycle: a
// destructive, not-yet-completed migration can be unwound, restoring the
// schema to its last-completed shape and dropping the shadow column.
func TestAbortRollsBackInProgressMigration(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		notNull := false
		tighten := action.NewMigration("2_name_not_null", nil).WithAction(&action.AlterColumn{
			Table:  "users",
			Column: "name",
			Up:     strPtr("COALESCE(name, 'unknown')"),
			Down:   strPtr("name"),
			Changes: action.ColumnChanges{
				Nullable: &notNull,
			},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, tighten}))

		require.NoError(t, e.Abort(ctx))

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT count(*) FROM information_schema.columns WHERE table_name = 'users'
		`).Scan(&count))
		assert.Equal(t, 2, count) // shadow column gone

		// The already-completed first migration's namespace survives; only
		// the aborted second migration's namespace is gone.
		var remaining []string
		rows, err := db.QueryContext(ctx, `
			SELECT nspname FROM pg_catalog.pg_namespace WHERE nspname LIKE 'migration_%'
		`)
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var ns string
			require.NoError(t, rows.Scan(&ns))
			remaining = append(remaining, ns)
		}
		assert.Equal(t, []string{"migration_1_create_users"}, remaining)
	})
}

// TestMigrateRejectsHistoryConflict covers invariant: persisted history is
// the source of truth for migration identity.
func TestMigrateRejectsHistoryConflict(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		renamed := action.NewMigration("1_create_users_renamed", nil).WithAction(&action.CreateTable{
			Name:       "users",
			Columns:    []action.Column{action.NewColumn("id", "serial").WithPrimaryKey()},
			PrimaryKey: []string{"id"},
		})

		err := e.Migrate(ctx, []*action.Migration{renamed})
		require.Error(t, err)
	})
}

// TestCompleteWithNothingInProgressReturnsSentinel covers the edge case of
// calling Complete with no pending migration.
func TestCompleteWithNothingInProgressReturnsSentinel(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()
		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)
	})
}

// TestAbortWithNothingInProgressReturnsSentinel covers the edge case of
// calling Abort with no pending migration.
func TestAbortWithNothingInProgressReturnsSentinel(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()
		err := e.Abort(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToAbort)
	})
}

// TestMigrateAutoCompletesNonDestructiveMigrations covers the auto-complete
// path: a CreateTable has no destructive Complete step, so Migrate
// finalizes it without a separate Complete call.
func TestMigrateAutoCompletesNonDestructiveMigrations(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)
	})
}

// TestMigrateAddIndexCreatesIndexAndAutoCompletes covers AddIndex: it has no
// destructive Complete step, so Migrate finalizes it on its own and the index
// is visible under its final name immediately.
func TestMigrateAddIndexCreatesIndexAndAutoCompletes(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		addIdx := action.NewMigration("2_add_name_index", nil).WithAction(&action.AddIndex{
			Table:   "users",
			Name:    "idx_users_name",
			Columns: []string{"name"},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, addIdx}))

		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)

		assert.True(t, indexExistsInDB(t, db, "idx_users_name"))
	})
}

// TestCompleteDropsRemovedIndex covers RemoveIndex: destructive, so the drop
// is deferred until Complete, leaving the index intact for any session still
// reading through the pre-removal namespace.
func TestCompleteDropsRemovedIndex(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		addIdx := action.NewMigration("2_add_name_index", nil).WithAction(&action.AddIndex{
			Table:   "users",
			Name:    "idx_users_name",
			Columns: []string{"name"},
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, addIdx}))
		require.ErrorIs(t, e.Complete(ctx), engine.ErrNothingToComplete)

		removeIdx := action.NewMigration("3_remove_name_index", nil).WithAction(&action.RemoveIndex{
			Table: "users",
			Name:  "idx_users_name",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, addIdx, removeIdx}))

		assert.True(t, indexExistsInDB(t, db, "idx_users_name"))

		require.NoError(t, e.Complete(ctx))
		assert.False(t, indexExistsInDB(t, db, "idx_users_name"))
	})
}

// TestCompleteDropsRemovedTable covers RemoveTable: destructive, so the
// physical DROP TABLE is deferred until Complete.
func TestCompleteDropsRemovedTable(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		remove := action.NewMigration("2_remove_users", nil).WithAction(&action.RemoveTable{
			Name: "users",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, remove}))

		assert.True(t, tableExistsInDB(t, db, "users"))

		require.NoError(t, e.Complete(ctx))
		assert.False(t, tableExistsInDB(t, db, "users"))
	})
}

// TestMigrateRenameTableAutoCompletesAndRenamesPhysicalTable covers
// RenameTable: fully non-destructive, so it finalizes without an explicit
// Complete and the physical table is renamed immediately.
func TestMigrateRenameTableAutoCompletesAndRenamesPhysicalTable(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		rename := action.NewMigration("2_rename_users", nil).WithAction(&action.RenameTable{
			From: "users",
			To:   "accounts",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, rename}))

		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)

		assert.False(t, tableExistsInDB(t, db, "users"))
		assert.True(t, tableExistsInDB(t, db, "accounts"))
	})
}

// TestMigrateCustomAutoCompletesWhenConfigured covers the Custom escape
// hatch with AutoComplete set: its Up SQL runs on Migrate and, since no
// explicit Complete is required, the migration finalizes on its own.
func TestMigrateCustomAutoCompletesWhenConfigured(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		custom := action.NewMigration("1_custom_table", nil).WithAction(&action.Custom{
			Up:           "CREATE TABLE widgets (id serial PRIMARY KEY)",
			Down:         "DROP TABLE widgets",
			AutoComplete: true,
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{custom}))

		err := e.Complete(ctx)
		assert.ErrorIs(t, err, engine.ErrNothingToComplete)

		assert.True(t, tableExistsInDB(t, db, "widgets"))
	})
}

// TestCompleteRunsCustomOnCompleteSQL covers the Custom escape hatch without
// AutoComplete: its OnComplete SQL only runs once Complete is called
// explicitly.
func TestCompleteRunsCustomOnCompleteSQL(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		custom := action.NewMigration("1_custom_table", nil).WithAction(&action.Custom{
			Up:         "CREATE TABLE widgets (id serial PRIMARY KEY)",
			OnComplete: "ALTER TABLE widgets ADD COLUMN ready boolean NOT NULL DEFAULT false",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{custom}))

		assert.False(t, columnExistsInDB(t, db, "widgets", "ready"))

		require.NoError(t, e.Complete(ctx))
		assert.True(t, columnExistsInDB(t, db, "widgets", "ready"))
	})
}

// TestAbortRunsCustomDownSQL covers the Custom escape hatch's Down SQL,
// which only runs when an in-progress migration is aborted.
func TestAbortRunsCustomDownSQL(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))
		require.ErrorIs(t, e.Complete(ctx), engine.ErrNothingToComplete)

		custom := action.NewMigration("2_custom_table", nil).WithAction(&action.Custom{
			Up:   "CREATE TABLE widgets (id serial PRIMARY KEY)",
			Down: "DROP TABLE widgets",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, custom}))
		assert.True(t, tableExistsInDB(t, db, "widgets"))

		require.NoError(t, e.Abort(ctx))
		assert.False(t, tableExistsInDB(t, db, "widgets"))
	})
}

// TestCompleteDropsRemovedColumn covers RemoveColumn: destructive, so the
// physical DROP COLUMN is deferred until Complete, leaving the old schema's
// view able to keep serving it until then.
func TestCompleteDropsRemovedColumn(t *testing.T) {
	t.Parallel()

	testutils.WithEngineAndConnectionToContainer(t, func(e *engine.Engine, db *sql.DB) {
		ctx := context.Background()

		create := createUsersMigration()
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create}))

		remove := action.NewMigration("2_remove_name", nil).WithAction(&action.RemoveColumn{
			Table:  "users",
			Column: "name",
		})
		require.NoError(t, e.Migrate(ctx, []*action.Migration{create, remove}))

		assert.True(t, columnExistsInDB(t, db, "users", "name"))

		require.NoError(t, e.Complete(ctx))
		assert.False(t, columnExistsInDB(t, db, "users", "name"))
	})
}

func runSchemaQueryOnConn(t *testing.T, conn *sql.Conn, query string) {
	t.Helper()
	_, err := conn.ExecContext(context.Background(), query)
	require.NoError(t, err)
}

func indexExistsInDB(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_indexes WHERE indexname = $1)", name,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func tableExistsInDB(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_tables WHERE tablename = $1)", name,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func columnExistsInDB(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(context.Background(), `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	require.NoError(t, err)
	return exists
}
