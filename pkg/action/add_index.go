// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// AddIndex builds an index concurrently, so it never blocks writers. It has
// no destructive phase and completes automatically.
type AddIndex struct {
	Table   string   `json:"table"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

func (a *AddIndex) Validate(current *schema.Schema) error {
	t := current.GetTable(a.Table)
	if t == nil {
		return &TableDoesNotExistError{Name: a.Table}
	}
	if err := ValidateIdentifier(a.Name); err != nil {
		return err
	}
	if len(a.Columns) == 0 {
		return &FieldRequiredError{Name: "columns"}
	}
	for _, c := range a.Columns {
		if t.GetColumn(c) == nil {
			return &ColumnDoesNotExistError{Table: a.Table, Column: c}
		}
	}
	return nil
}

func (a *AddIndex) Begin(ctx context.Context, ec *ExecutionContext) error {
	exists, err := indexExists(ctx, ec.Conn, a.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	unique := ""
	if a.Unique {
		unique = "UNIQUE "
	}
	quoted := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	sql := fmt.Sprintf("CREATE %sINDEX CONCURRENTLY IF NOT EXISTS %s ON %s (%s)",
		unique, pq.QuoteIdentifier(a.Name), pq.QuoteIdentifier(a.Table), strings.Join(quoted, ", "))
	_, err = ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *AddIndex) Complete(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *AddIndex) Abort(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", pq.QuoteIdentifier(a.Name))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *AddIndex) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{AffectedTable: a.Table}, nil
}

func (a *AddIndex) CompleteAutomatically() bool { return true }
