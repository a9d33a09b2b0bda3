// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/db"
)

// columnType returns the fully formatted type (including any typmod, e.g.
// "character varying(255)") and NOT NULL-ness of an existing physical
// column, read from the catalog rather than tracked in-process so that it
// always reflects what is really on disk.
func columnType(ctx context.Context, conn db.DB, table, column string) (string, bool, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT format_type(a.atttypid, a.atttypmod), a.attnotnull
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = current_schema()
		  AND a.attname = $2 AND a.attnum > 0 AND NOT a.attisdropped
	`, table, column)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, fmt.Errorf("column %q.%q not found", table, column)
	}
	var typ string
	var notNull bool
	if err := rows.Scan(&typ, &notNull); err != nil {
		return "", false, err
	}
	return typ, notNull, rows.Err()
}

// indexDef describes an existing index enough to rebuild it against a
// different underlying column.
type indexDef struct {
	Name    string
	Unique  bool
	Columns []string
}

// indexesReferencingColumn returns every non-constraint index on table that
// includes column, so AlterColumn's complete phase can re-create them
// against the renamed shadow column under their original names.
func indexesReferencingColumn(ctx context.Context, conn db.DB, table, column string) ([]indexDef, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT i.relname, ix.indisunique, array_agg(a.attname ORDER BY k.ord)
		FROM pg_catalog.pg_class t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_index ix ON ix.indrelid = t.oid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE t.relname = $1 AND n.nspname = current_schema()
		  AND ix.indexrelid NOT IN (SELECT conindid FROM pg_catalog.pg_constraint WHERE conindid <> 0)
		GROUP BY i.relname, ix.indisunique
		HAVING $2 = ANY(array_agg(a.attname))
	`, table, column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []indexDef
	for rows.Next() {
		var name string
		var unique bool
		var cols pq.StringArray
		if err := rows.Scan(&name, &unique, &cols); err != nil {
			return nil, err
		}
		defs = append(defs, indexDef{Name: name, Unique: unique, Columns: []string(cols)})
	}
	return defs, rows.Err()
}

// rebuildIndexUnderOriginalName drops idx and recreates it with oldColumn
// replaced by newColumn, reusing idx.Name so that pg_class.relname of the
// index is unchanged from the caller's perspective even though the
// underlying relation was dropped and rebuilt.
func rebuildIndexUnderOriginalName(ctx context.Context, ec *ExecutionContext, table string, idx indexDef, oldColumn, newColumn string) error {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		if c == oldColumn {
			c = newColumn
		}
		cols[i] = pq.QuoteIdentifier(c)
	}

	tmpName := TempIndexName(idx.Name, newColumn)

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	create := fmt.Sprintf("CREATE %sINDEX CONCURRENTLY IF NOT EXISTS %s ON %s (%s)",
		unique, pq.QuoteIdentifier(tmpName), pq.QuoteIdentifier(table), strings.Join(cols, ", "))
	if _, err := ec.Conn.ExecContext(ctx, create); err != nil {
		return err
	}

	drop := fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", pq.QuoteIdentifier(idx.Name))
	if _, err := ec.Conn.ExecContext(ctx, drop); err != nil {
		return err
	}

	rename := fmt.Sprintf("ALTER INDEX %s RENAME TO %s", pq.QuoteIdentifier(tmpName), pq.QuoteIdentifier(idx.Name))
	_, err := ec.Conn.ExecContext(ctx, rename)
	return err
}
