// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// AddColumn adds a new column to an existing table. When Up is supplied the
// column is added nullable and backfilled, then a NOT NULL constraint is
// validated separately, the same idempotent two-step AlterColumn uses for
// tightening nullability.
type AddColumn struct {
	Table  string `json:"table"`
	Column Column `json:"column"`
	Up     *string `json:"up,omitempty"`
}

func (a *AddColumn) checkConstraintName() string {
	return deriveName(fmt.Sprintf("__reshape_check_notnull_%s_%s", a.Table, a.Column.Name))
}

func (a *AddColumn) Validate(current *schema.Schema) error {
	t := current.GetTable(a.Table)
	if t == nil {
		return &TableDoesNotExistError{Name: a.Table}
	}
	if t.GetColumn(a.Column.Name) != nil {
		return &ColumnAlreadyExistsError{Table: a.Table, Column: a.Column.Name}
	}
	if err := a.Column.Validate(); err != nil {
		return err
	}
	if !a.Column.Nullable && a.Column.Default == nil && a.Up == nil {
		return &ColumnIsNotNullableError{Table: a.Table, Column: a.Column.Name}
	}
	return nil
}

func (a *AddColumn) Begin(ctx context.Context, ec *ExecutionContext) error {
	exists, err := columnExists(ctx, ec.Conn, a.Table, a.Column.Name)
	if err != nil {
		return err
	}
	if !exists {
		def := a.Column
		forceNullable := def
		forceNullable.Nullable = true
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s",
			pq.QuoteIdentifier(a.Table), forceNullable.ColumnDefinitionSQL(pq.QuoteIdentifier(a.Column.Name)))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
	}

	if a.Up != nil {
		backfill := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL",
			pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column.Name), *a.Up, pq.QuoteIdentifier(a.Column.Name))
		if _, err := ec.Conn.ExecContext(ctx, backfill); err != nil {
			return err
		}
	}

	if !a.Column.Nullable {
		constraint := a.checkConstraintName()
		validated, err := constraintValidated(ctx, ec.Conn, a.Table, constraint)
		if err != nil {
			return err
		}
		if !validated {
			exists, err := constraintExists(ctx, ec.Conn, a.Table, constraint)
			if err != nil {
				return err
			}
			if !exists {
				sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s IS NOT NULL) NOT VALID",
					pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint), pq.QuoteIdentifier(a.Column.Name))
				if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
					return err
				}
			}
			sql := fmt.Sprintf("ALTER TABLE %s VALIDATE CONSTRAINT %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint))
			if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *AddColumn) Complete(ctx context.Context, ec *ExecutionContext) error {
	if !a.Column.Nullable {
		constraint := a.checkConstraintName()
		sql := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column.Name))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
		drop := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint))
		if _, err := ec.Conn.ExecContext(ctx, drop); err != nil {
			return err
		}
	}
	return nil
}

func (a *AddColumn) Abort(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column.Name))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *AddColumn) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{
		AffectedTable: a.Table,
		AddsColumns:   []LogicalColumn{{Name: a.Column.Name, Physical: a.Column.Name, Default: a.Column.Default}},
	}, nil
}

func (a *AddColumn) CompleteAutomatically() bool { return false }
