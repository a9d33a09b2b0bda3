// SPDX-License-Identifier: Apache-2.0

// Package project builds, per migration, a schema namespace of views and
// INSTEAD OF triggers exposing the logical shape that migration defines
// over the shared physical tables.
package project

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/db"
	"github.com/db-tools-oss/reshape/pkg/schema"
)

// Projector builds and tears down migration namespaces against one target
// application schema.
type Projector struct {
	TargetSchema   string
	PGMajorVersion int
}

// New returns a Projector targeting the given application schema.
// pgMajorVersion gates use of security_invoker views, a PG15+ feature.
func New(targetSchema string, pgMajorVersion int) *Projector {
	return &Projector{TargetSchema: targetSchema, PGMajorVersion: pgMajorVersion}
}

// NamespaceName returns the schema namespace name for a migration.
func NamespaceName(migrationName string) string {
	return "migration_" + migrationName
}

// CreateNamespace builds the namespace for migrationName from sch: one view
// per table plus its INSTEAD OF triggers. The schema, views and trigger
// functions use CREATE ... IF NOT EXISTS / CREATE OR REPLACE; the INSTEAD OF
// triggers use plain CREATE TRIGGER, so a second call for the same
// migration fails once those triggers exist.
func (p *Projector) CreateNamespace(ctx context.Context, conn db.DB, migrationName string, sch *schema.Schema) error {
	ns := NamespaceName(migrationName)

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(ns))); err != nil {
		return fmt.Errorf("creating namespace %s: %w", ns, err)
	}

	tableNames := make([]string, 0, len(sch.Tables))
	for name := range sch.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, name := range tableNames {
		t := sch.Tables[name]

		logicalNames := make([]string, 0, len(t.Columns))
		for logical := range t.Columns {
			logicalNames = append(logicalNames, logical)
		}
		sort.Strings(logicalNames)

		cols := make([]ColumnMapping, 0, len(logicalNames))
		for _, logical := range logicalNames {
			c := t.Columns[logical]
			cols = append(cols, ColumnMapping{Logical: c.Name, Physical: c.Physical, Default: c.Default})
		}

		viewSQL, err := RenderView(ViewParams{
			Namespace:       ns,
			TargetSchema:    p.TargetSchema,
			View:            t.Name,
			Table:           t.Name,
			Columns:         cols,
			SecurityInvoker: p.PGMajorVersion >= 15,
		})
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, viewSQL); err != nil {
			return fmt.Errorf("creating view %s.%s: %w", ns, t.Name, err)
		}

		triggerSQL, err := RenderInsteadOfTriggers(InsteadOfParams{
			Namespace:    ns,
			TargetSchema: p.TargetSchema,
			View:         t.Name,
			Table:        t.Name,
			Columns:      cols,
			PrimaryKey:   t.PrimaryKey,
		})
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, triggerSQL); err != nil {
			return fmt.Errorf("creating instead-of triggers for %s.%s: %w", ns, t.Name, err)
		}
	}

	return nil
}

// DropNamespace removes a migration's namespace and everything in it.
func (p *Projector) DropNamespace(ctx context.Context, conn db.DB, migrationName string) error {
	ns := NamespaceName(migrationName)
	_, err := conn.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(ns)))
	return err
}
