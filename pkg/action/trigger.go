// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/action/templates"
)

// SchemaVersionSetting is the session-local setting row-level triggers
// inspect to decide which direction to project a write. A session that has
// not adopted any migration leaves it unset, which triggers treat as "the
// old schema".
const SchemaVersionSetting = "reshape.schema_version"

// installProjectionTrigger creates (or replaces) the function and trigger
// that keep original and shadow in sync for an in-flight AlterColumn.
// Idempotent: CREATE OR REPLACE and a pre-check on the trigger's existence.
func installProjectionTrigger(ctx context.Context, ec *ExecutionContext, table, original, shadow, up, down, migration string) error {
	triggerName := TriggerName(table, original, migration)
	functionName := triggerName + "_fn"

	fnSQL, err := templates.RenderTriggerFunction(templates.TriggerFunctionParams{
		Function:   functionName,
		Table:      table,
		Original:   original,
		Shadow:     shadow,
		Up:         up,
		Down:       down,
		Migration:  migration,
		VersionVar: SchemaVersionSetting,
	})
	if err != nil {
		return err
	}
	if _, err := ec.Conn.ExecContext(ctx, fnSQL); err != nil {
		return err
	}

	exists, err := triggerExists(ctx, ec.Conn, table, triggerName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	trigSQL, err := templates.RenderTrigger(templates.TriggerParams{
		Trigger:  triggerName,
		Function: functionName,
		Table:    table,
	})
	if err != nil {
		return err
	}
	_, err = ec.Conn.ExecContext(ctx, trigSQL)
	return err
}

// dropProjectionTrigger removes the trigger and its backing function for
// the AlterColumn on table/original within migration. Idempotent.
func dropProjectionTrigger(ctx context.Context, ec *ExecutionContext, table, original, migration string) error {
	triggerName := TriggerName(table, original, migration)
	functionName := triggerName + "_fn"

	sql := fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", pq.QuoteIdentifier(triggerName), pq.QuoteIdentifier(table))
	if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
		return err
	}

	sql = fmt.Sprintf("DROP FUNCTION IF EXISTS %s()", pq.QuoteIdentifier(functionName))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}
