// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// RemoveColumn drops a column. The drop itself is destructive, so it only
// runs on Complete; Begin is a no-op and the old schema's view keeps
// exposing the column until then.
type RemoveColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (a *RemoveColumn) Validate(current *schema.Schema) error {
	t := current.GetTable(a.Table)
	if t == nil {
		return &TableDoesNotExistError{Name: a.Table}
	}
	if t.GetColumn(a.Column) == nil {
		return &ColumnDoesNotExistError{Table: a.Table, Column: a.Column}
	}
	return nil
}

func (a *RemoveColumn) Begin(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveColumn) Complete(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *RemoveColumn) Abort(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveColumn) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{AffectedTable: a.Table, RemovesColumns: []string{a.Column}}, nil
}

func (a *RemoveColumn) CompleteAutomatically() bool { return false }
