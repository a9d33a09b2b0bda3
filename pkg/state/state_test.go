// SPDX-License-Identifier: Apache-2.0

package state_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/db-tools-oss/reshape/internal/testutils"
	"github.com/db-tools-oss/reshape/pkg/state"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	testutils.WithStateAndConnectionToContainer(t, func(st *state.State, db *sql.DB) {
		ctx := context.Background()
		require.NoError(t, st.Init(ctx))
	})
}

func TestAcquireSeedsFreshState(t *testing.T) {
	t.Parallel()

	testutils.WithStateAndConnectionToContainer(t, func(st *state.State, db *sql.DB) {
		ctx := context.Background()

		lock, err := st.Acquire(ctx, false)
		require.NoError(t, err)
		defer lock.Release()

		ps := lock.Read()
		assert.Equal(t, state.StatusIdle, ps.Status)
		assert.Equal(t, -1, ps.CurrentMigration)
		assert.Equal(t, -1, ps.LastCompletedMigration)
		assert.Empty(t, ps.Migrations)
	})
}

func TestWritePersistsAcrossAcquisitions(t *testing.T) {
	t.Parallel()

	testutils.WithStateAndConnectionToContainer(t, func(st *state.State, db *sql.DB) {
		ctx := context.Background()

		lock, err := st.Acquire(ctx, false)
		require.NoError(t, err)

		ps := lock.Read()
		ps.Status = state.StatusInProgress
		ps.CurrentMigration = 0
		ps.Migrations = []state.StoredMigration{{Name: "m1", Actions: []byte(`[]`)}}
		require.NoError(t, lock.Write(ctx, ps))
		require.NoError(t, lock.Release())

		lock2, err := st.Acquire(ctx, false)
		require.NoError(t, err)
		defer lock2.Release()

		reread := lock2.Read()
		assert.Equal(t, state.StatusInProgress, reread.Status)
		assert.Equal(t, 0, reread.CurrentMigration)
		require.Len(t, reread.Migrations, 1)
		assert.Equal(t, "m1", reread.Migrations[0].Name)
	})
}

func TestAcquireNoWaitFailsWhenLockHeld(t *testing.T) {
	t.Parallel()

	testutils.WithStateAndConnectionToContainer(t, func(st *state.State, db *sql.DB) {
		ctx := context.Background()

		lock, err := st.Acquire(ctx, false)
		require.NoError(t, err)
		defer lock.Release()

		_, err = st.Acquire(ctx, true)
		assert.ErrorIs(t, err, state.ErrBusy)
	})
}

func TestVersionCompatibilityDetectsOlderEngine(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(db *sql.DB, connStr string) {
		ctx := context.Background()

		initial, err := state.New(ctx, connStr, "reshape", "v1.2.0")
		require.NoError(t, err)
		defer initial.Close()
		require.NoError(t, initial.Init(ctx))

		older, err := state.New(ctx, connStr, "reshape", "v1.0.0")
		require.NoError(t, err)
		defer older.Close()

		compat, err := older.VersionCompatibility(ctx)
		require.NoError(t, err)
		assert.Equal(t, state.VersionCompatEngineOlder, compat)
	})
}

func TestVersionCompatibilitySkippedForDevelopmentBuilds(t *testing.T) {
	t.Parallel()

	testutils.WithStateAndConnectionToContainer(t, func(st *state.State, db *sql.DB) {
		compat, err := st.VersionCompatibility(context.Background())
		require.NoError(t, err)
		assert.Equal(t, state.VersionCompatCheckSkipped, compat)
	})
}

func TestRemoveDropsReservedSchema(t *testing.T) {
	t.Parallel()

	testutils.WithStateInSchemaAndConnectionToContainer(t, "reshape_remove_test", func(st *state.State, db *sql.DB) {
		ctx := context.Background()
		require.NoError(t, st.Remove(ctx))

		var exists bool
		err := db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $1)
		`, "reshape_remove_test").Scan(&exists)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
