// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// RemoveTable drops a table. Destructive, so deferred to Complete.
type RemoveTable struct {
	Name string `json:"name"`
}

func (a *RemoveTable) Validate(current *schema.Schema) error {
	if current.GetTable(a.Name) == nil {
		return &TableDoesNotExistError{Name: a.Name}
	}
	return nil
}

func (a *RemoveTable) Begin(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveTable) Complete(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(a.Name))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *RemoveTable) Abort(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveTable) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{AffectedTable: a.Name, TableRemoved: true}, nil
}

func (a *RemoveTable) CompleteAutomatically() bool { return false }
