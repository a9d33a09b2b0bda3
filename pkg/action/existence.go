// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"database/sql"

	"github.com/db-tools-oss/reshape/pkg/db"
)

func tableExists(ctx context.Context, conn db.DB, table string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = current_schema() AND c.relkind = 'r'
	)`, table)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func columnExists(ctx context.Context, conn db.DB, table, column string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
	)`, table, column)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func indexExists(ctx context.Context, conn db.DB, index string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = current_schema() AND c.relkind = 'i'
	)`, index)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func constraintExists(ctx context.Context, conn db.DB, table, constraint string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM pg_catalog.pg_constraint c
		JOIN pg_catalog.pg_class t ON t.oid = c.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relname = $1 AND n.nspname = current_schema() AND c.conname = $2
	)`, table, constraint)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func triggerExists(ctx context.Context, conn db.DB, table, trigger string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM pg_catalog.pg_trigger t
		JOIN pg_catalog.pg_class c ON c.oid = t.tgrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = current_schema() AND t.tgname = $2 AND NOT t.tgisinternal
	)`, table, trigger)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := db.ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

// constraintValidated reports whether a check constraint has already been
// validated (convalidated = true), so a retried Begin does not re-run
// VALIDATE CONSTRAINT needlessly.
func constraintValidated(ctx context.Context, conn db.DB, table, constraint string) (bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT c.convalidated
		FROM pg_catalog.pg_constraint c
		JOIN pg_catalog.pg_class t ON t.oid = c.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relname = $1 AND n.nspname = current_schema() AND c.conname = $2
	`, table, constraint)
	if err != nil {
		return false, err
	}
	var validated sql.NullBool
	if err := db.ScanFirstValue(rows, &validated); err != nil {
		return false, err
	}
	return validated.Valid && validated.Bool, nil
}
