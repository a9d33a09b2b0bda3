// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// CreateTable creates a new physical table. It has no destructive phase: a
// table created in one migration and never used can simply be dropped by
// Abort, so CreateTable completes automatically.
type CreateTable struct {
	Name       string     `json:"name"`
	Columns    []Column   `json:"columns"`
	PrimaryKey []string   `json:"primary_key"`
}

func (a *CreateTable) Validate(current *schema.Schema) error {
	if err := ValidateIdentifier(a.Name); err != nil {
		return err
	}
	if current.GetTable(a.Name) != nil {
		return &TableAlreadyExistsError{Name: a.Name}
	}
	if len(a.Columns) == 0 {
		return &FieldRequiredError{Name: "columns"}
	}
	for _, c := range a.Columns {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a *CreateTable) Begin(ctx context.Context, ec *ExecutionContext) error {
	exists, err := tableExists(ctx, ec.Conn, a.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	defs := make([]string, 0, len(a.Columns)+1)
	for _, c := range a.Columns {
		defs = append(defs, c.ColumnDefinitionSQL(pq.QuoteIdentifier(c.Name)))
	}
	if len(a.PrimaryKey) > 0 {
		quoted := make([]string, len(a.PrimaryKey))
		for i, col := range a.PrimaryKey {
			quoted[i] = pq.QuoteIdentifier(col)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(a.Name), strings.Join(defs, ", "))
	_, err = ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *CreateTable) Complete(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *CreateTable) Abort(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(a.Name))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *CreateTable) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	d := &Describe{AffectedTable: a.Name, TableCreated: true, PrimaryKey: a.PrimaryKey}
	for _, c := range a.Columns {
		d.AddsColumns = append(d.AddsColumns, LogicalColumn{Name: c.Name, Physical: c.Name, Default: c.Default})
	}
	return d, nil
}

func (a *CreateTable) CompleteAutomatically() bool { return true }
