// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// RemoveIndex drops an index. Destructive, so deferred to Complete: the old
// schema's view may still rely on the index existing for acceptable query
// plans until the cutover.
type RemoveIndex struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

func (a *RemoveIndex) Validate(current *schema.Schema) error {
	if current.GetTable(a.Table) == nil {
		return &TableDoesNotExistError{Name: a.Table}
	}
	return ValidateIdentifier(a.Name)
}

func (a *RemoveIndex) Begin(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveIndex) Complete(ctx context.Context, ec *ExecutionContext) error {
	sql := fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", pq.QuoteIdentifier(a.Name))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *RemoveIndex) Abort(ctx context.Context, ec *ExecutionContext) error {
	return nil
}

func (a *RemoveIndex) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{AffectedTable: a.Table}, nil
}

func (a *RemoveIndex) CompleteAutomatically() bool { return false }
