// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/db-tools-oss/reshape/pkg/state"
)

// Remove drops every namespace the engine has ever created, plus the
// reserved state schema itself, leaving physical tables completely
// untouched. Intended for decommissioning reshape-managed migrations from
// a database, not for undoing a migration's data changes.
func (e *Engine) Remove(ctx context.Context) error {
	lock, err := e.state.Acquire(ctx, e.noWaitLock)
	if err != nil {
		if err == state.ErrBusy {
			return ErrBusy
		}
		return err
	}

	persisted := lock.Read()
	migrations, err := decodeMigrations(persisted.Migrations)
	if err != nil {
		lock.Release()
		return err
	}

	for _, m := range migrations {
		if err := e.projector.DropNamespace(ctx, e.conn, m.Name); err != nil {
			lock.Release()
			return fmt.Errorf("migration %q: dropping namespace: %w", m.Name, err)
		}
	}

	if err := lock.Release(); err != nil {
		return err
	}

	return e.state.Remove(ctx)
}
