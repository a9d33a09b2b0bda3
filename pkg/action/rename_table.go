// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// RenameTable renames a physical table. It is fully non-destructive (the
// old name simply stops resolving), so it completes automatically.
type RenameTable struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (a *RenameTable) Validate(current *schema.Schema) error {
	if current.GetTable(a.From) == nil {
		return &TableDoesNotExistError{Name: a.From}
	}
	if current.GetTable(a.To) != nil {
		return &TableAlreadyExistsError{Name: a.To}
	}
	return ValidateIdentifier(a.To)
}

func (a *RenameTable) Begin(ctx context.Context, ec *ExecutionContext) error {
	exists, err := tableExists(ctx, ec.Conn, a.From)
	if err != nil {
		return err
	}
	if !exists {
		// already renamed by a prior, interrupted run.
		return nil
	}
	sql := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pq.QuoteIdentifier(a.From), pq.QuoteIdentifier(a.To))
	_, err = ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *RenameTable) Complete(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RenameTable) Abort(ctx context.Context, ec *ExecutionContext) error {
	exists, err := tableExists(ctx, ec.Conn, a.To)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	sql := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pq.QuoteIdentifier(a.To), pq.QuoteIdentifier(a.From))
	_, err = ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *RenameTable) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{AffectedTable: a.From, NewTableName: a.To}, nil
}

func (a *RenameTable) CompleteAutomatically() bool { return true }
