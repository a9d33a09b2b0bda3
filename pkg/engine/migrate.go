// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/plan"
	"github.com/db-tools-oss/reshape/pkg/state"
)

// Migrate brings the database up to date with migrations: any migration
// already recorded in persisted history is skipped, and any new one is run
// through its Begin hooks and projected into its own schema namespace.
//
// If every pending migration's actions report CompleteAutomatically,
// Migrate finalizes them immediately; otherwise the caller must invoke
// Complete once satisfied the new shape is safe to adopt everywhere.
func (e *Engine) Migrate(ctx context.Context, migrations []*action.Migration) error {
	for _, m := range migrations {
		if err := m.Validate(); err != nil {
			return &InvalidActionError{Migration: m.Name, Err: err}
		}
		m.Compact()
	}

	lock, err := e.state.Acquire(ctx, e.noWaitLock)
	if err != nil {
		if err == state.ErrBusy {
			return ErrBusy
		}
		return err
	}
	defer lock.Release()

	persisted := lock.Read()
	if persisted.Status == state.StatusAborting {
		return ErrAbortInProgress
	}

	p, err := plan.Build(migrations, persisted)
	if err != nil {
		return &MigrationHistoryConflictError{Err: err}
	}
	if len(p.Pending) == 0 {
		return nil
	}

	for i, m := range p.Pending {
		if err := e.validateMigration(migrations, p.StartIndex+i, m); err != nil {
			return &InvalidActionError{Migration: m.Name, Err: err}
		}
	}

	if err := e.setLockTimeout(ctx); err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	for i, m := range p.Pending {
		absoluteIndex := p.StartIndex + i

		persisted = lock.Read()
		persisted.Status = state.StatusInProgress
		stored, err := encodeMigration(m)
		if err != nil {
			return err
		}
		if len(persisted.Migrations) == absoluteIndex {
			persisted.Migrations = append(persisted.Migrations, stored)
		} else {
			persisted.Migrations[absoluteIndex] = stored
		}
		persisted.CurrentMigration = absoluteIndex
		if err := lock.Write(ctx, persisted); err != nil {
			return err
		}

		ec := e.executionContext(m.Name)
		for _, a := range m.Actions {
			if err := a.Begin(ctx, ec); err != nil {
				return &DatabaseError{Migration: m.Name, Action: actionKindName(a), Phase: "begin", Err: err}
			}
		}

		sch, err := buildSchema(migrations, absoluteIndex)
		if err != nil {
			return err
		}
		if err := e.projector.CreateNamespace(ctx, e.conn, m.Name, sch); err != nil {
			return fmt.Errorf("migration %q: creating namespace: %w", m.Name, err)
		}
		e.logger.Info("created migration namespace", "migration", m.Name)
	}

	if p.AutoComplete {
		return e.completeLocked(ctx, lock, migrations)
	}

	return nil
}

// validateMigration validates m's actions against the schema as it stood
// immediately before m was applied.
func (e *Engine) validateMigration(migrations []*action.Migration, index int, m *action.Migration) error {
	sch, err := buildSchema(migrations, index-1)
	if err != nil {
		return err
	}
	for _, a := range m.Actions {
		if err := a.Validate(sch); err != nil {
			return err
		}
	}
	return nil
}

func actionKindName(a action.Action) string {
	return fmt.Sprintf("%T", a)
}
