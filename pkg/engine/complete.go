// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/state"
)

// Complete finalizes every migration that has begun but not yet completed:
// it runs their Complete hooks in declared order and drops the namespaces
// superseded by the final migration's view, leaving only the latest
// namespace and the physical tables behind it.
func (e *Engine) Complete(ctx context.Context) error {
	lock, err := e.state.Acquire(ctx, e.noWaitLock)
	if err != nil {
		if err == state.ErrBusy {
			return ErrBusy
		}
		return err
	}
	defer lock.Release()

	persisted := lock.Read()
	if persisted.CurrentMigration <= persisted.LastCompletedMigration {
		return ErrNothingToComplete
	}

	migrations, err := decodeMigrations(persisted.Migrations)
	if err != nil {
		return err
	}

	if err := e.setLockTimeout(ctx); err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return e.completeLocked(ctx, lock, migrations)
}

// completeLocked assumes lock is held and persisted.CurrentMigration names
// a migration that has begun. It is shared between the public Complete and
// migrate's auto-complete path.
func (e *Engine) completeLocked(ctx context.Context, lock *state.Lock, migrations []*action.Migration) error {
	persisted := lock.Read()
	persisted.Status = state.StatusCompleting
	if err := lock.Write(ctx, persisted); err != nil {
		return err
	}

	from := persisted.LastCompletedMigration + 1
	to := persisted.CurrentMigration
	oldFinal := persisted.LastCompletedMigration

	// The namespace that was the final one before this call is superseded
	// by migrations[to]'s namespace. It is dropped before any Complete hook
	// runs: its views still select the physical columns those hooks drop,
	// and Postgres refuses to drop a column that a view depends on.
	if oldFinal >= 0 {
		if err := e.projector.DropNamespace(ctx, e.conn, migrations[oldFinal].Name); err != nil {
			return fmt.Errorf("migration %q: dropping superseded namespace: %w", migrations[oldFinal].Name, err)
		}
	}

	for i := from; i <= to; i++ {
		m := migrations[i]
		ec := e.executionContext(m.Name)
		for _, a := range m.Actions {
			if err := a.Complete(ctx, ec); err != nil {
				return &DatabaseError{Migration: m.Name, Action: actionKindName(a), Phase: "complete", Err: err}
			}
		}
		e.logger.Info("completed migration", "migration", m.Name)

		// Every namespace but the final migration's is now stale: its
		// views point at columns Complete has just dropped or renamed
		// out from under it.
		if i < to {
			if err := e.projector.DropNamespace(ctx, e.conn, m.Name); err != nil {
				return fmt.Errorf("migration %q: dropping superseded namespace: %w", m.Name, err)
			}
		}
	}

	persisted.LastCompletedMigration = to
	persisted.Status = state.StatusIdle
	return lock.Write(ctx, persisted)
}

func decodeMigrations(stored []state.StoredMigration) ([]*action.Migration, error) {
	migrations := make([]*action.Migration, len(stored))
	for i, sm := range stored {
		m, err := decodeMigration(sm)
		if err != nil {
			return nil, err
		}
		migrations[i] = m
	}
	return migrations, nil
}
