// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/db-tools-oss/reshape/pkg/state"
)

// Abort unwinds every migration that has begun but not yet completed: it
// runs their Abort hooks in reverse declared order, last migration first,
// drops the namespaces they created, and rolls persisted history back to
// the last completed migration.
//
// If an Abort call itself fails partway, the engine is left in the
// Aborting status and Migrate refuses to run until Abort is called again
// and succeeds.
func (e *Engine) Abort(ctx context.Context) error {
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
		return ErrNothingToAbort
	}

	migrations, err := decodeMigrations(persisted.Migrations)
	if err != nil {
		return err
	}

	if err := e.setLockTimeout(ctx); err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	persisted.Status = state.StatusAborting
	if err := lock.Write(ctx, persisted); err != nil {
		return err
	}

	from := persisted.LastCompletedMigration + 1
	to := persisted.CurrentMigration

	for i := to; i >= from; i-- {
		m := migrations[i]

		if err := e.projector.DropNamespace(ctx, e.conn, m.Name); err != nil {
			return fmt.Errorf("migration %q: dropping namespace: %w", m.Name, err)
		}

		ec := e.executionContext(m.Name)
		for j := len(m.Actions) - 1; j >= 0; j-- {
			if err := m.Actions[j].Abort(ctx, ec); err != nil {
				return &DatabaseError{Migration: m.Name, Action: actionKindName(m.Actions[j]), Phase: "abort", Err: err}
			}
		}
		e.logger.Info("aborted migration", "migration", m.Name)
	}

	persisted.Migrations = persisted.Migrations[:from]
	persisted.CurrentMigration = persisted.LastCompletedMigration
	persisted.Status = state.StatusIdle
	return lock.Write(ctx, persisted)
}
