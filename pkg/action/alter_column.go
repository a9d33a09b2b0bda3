// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// AlterColumn changes an existing column's type, nullability, default, or
// name. Anything beyond a pure rename goes through a shadow column and a
// row-level trigger pair that keeps the old and new representations in
// sync for the duration of the migration; see Begin for the sequencing.
type AlterColumn struct {
	Table   string        `json:"table"`
	Column  string        `json:"column"`
	Up      *string       `json:"up,omitempty"`
	Down    *string       `json:"down,omitempty"`
	Changes ColumnChanges `json:"changes"`
}

func (a *AlterColumn) finalName() string {
	if a.Changes.Name != nil {
		return *a.Changes.Name
	}
	return a.Column
}

func (a *AlterColumn) notNullConstraintName(migration string) string {
	return deriveName(fmt.Sprintf("__reshape_check_notnull_%s_%s_%s", a.Table, a.Column, migration))
}

func (a *AlterColumn) Validate(current *schema.Schema) error {
	t := current.GetTable(a.Table)
	if t == nil {
		return &TableDoesNotExistError{Name: a.Table}
	}
	if t.GetColumn(a.Column) == nil {
		return &ColumnDoesNotExistError{Table: a.Table, Column: a.Column}
	}
	if a.Changes.IsEmpty() {
		return &NoChangesError{Table: a.Table, Column: a.Column}
	}
	if a.Changes.Name != nil {
		if err := ValidateIdentifier(*a.Changes.Name); err != nil {
			return err
		}
	}
	if a.Changes.RequiresUpDown() && (a.Up == nil || a.Down == nil) {
		return &MissingUpDownError{Table: a.Table, Column: a.Column}
	}
	if a.Changes.Nullable != nil && !*a.Changes.Nullable && a.Up == nil {
		return &NotNullViolationError{Table: a.Table, Column: a.Column}
	}
	return nil
}

// Begin implements the AlterColumn algorithm. Every step is guarded by a
// catalog probe so that re-invoking after a partial run converges silently.
func (a *AlterColumn) Begin(ctx context.Context, ec *ExecutionContext) error {
	if a.Changes.IsRenameOnly() {
		// Step 2: rename-only short-circuit. The projector aliases the
		// new logical name over the existing physical column; nothing
		// to do at the database level.
		return nil
	}

	if a.Changes.IsDefaultOnly() {
		// A default-only change affects which value new inserts pick up,
		// not how existing rows are read, so it needs no shadow column,
		// trigger, or backfill: just move the physical default forward.
		sql := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
			pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column), *a.Changes.Default)
		_, err := ec.Conn.ExecContext(ctx, sql)
		return err
	}

	shadow := TempColumnName(a.Column, ec.MigrationName)

	// Step 1: resolve the shadow column's type from the current physical
	// column, overlaid with any type change.
	curType, _, err := columnType(ctx, ec.Conn, a.Table, a.Column)
	if err != nil {
		return err
	}
	newType := curType
	if a.Changes.Type != nil {
		newType = *a.Changes.Type
	}

	// Step 3: create the shadow column, always nullable at this point
	// regardless of the final nullability.
	exists, err := columnExists(ctx, ec.Conn, a.Table, shadow)
	if err != nil {
		return err
	}
	if !exists {
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(shadow), newType)
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
	}

	up := a.effectiveUp()
	down := a.effectiveDown()

	// Step 4: install the trigger pair before backfilling, so that no
	// write landing between the two steps is lost.
	if err := installProjectionTrigger(ctx, ec, a.Table, a.Column, shadow, up, down, ec.MigrationName); err != nil {
		return err
	}

	// Step 5: backfill existing rows. Re-running only touches rows the
	// first pass missed or rows added since.
	backfill := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL",
		pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(shadow), up, pq.QuoteIdentifier(shadow))
	if _, err := ec.Conn.ExecContext(ctx, backfill); err != nil {
		return err
	}

	// Step 6: a NOT NULL tightening is staged as a NOT VALID check,
	// validated separately so the table is never scanned under an
	// exclusive lock.
	if a.Changes.Nullable != nil && !*a.Changes.Nullable {
		if err := a.stageNotNull(ctx, ec, shadow); err != nil {
			return err
		}
	}

	return nil
}

func (a *AlterColumn) stageNotNull(ctx context.Context, ec *ExecutionContext, shadow string) error {
	constraint := a.notNullConstraintName(ec.MigrationName)

	validated, err := constraintValidated(ctx, ec.Conn, a.Table, constraint)
	if err != nil {
		return err
	}
	if validated {
		return nil
	}

	ce, err := constraintExists(ctx, ec.Conn, a.Table, constraint)
	if err != nil {
		return err
	}
	if !ce {
		sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s IS NOT NULL) NOT VALID",
			pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint), pq.QuoteIdentifier(shadow))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
	}

	sql := fmt.Sprintf("ALTER TABLE %s VALIDATE CONSTRAINT %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint))
	_, err = ec.Conn.ExecContext(ctx, sql)
	return err
}

// Complete implements step 7: drop the trigger, drop the original column,
// rename the shadow into place, promote the check constraint to NOT NULL,
// and re-create any index that referenced the original column under its
// original name.
func (a *AlterColumn) Complete(ctx context.Context, ec *ExecutionContext) error {
	final := a.finalName()

	if a.Changes.IsRenameOnly() || a.Changes.IsDefaultOnly() {
		return nil
	}

	shadow := TempColumnName(a.Column, ec.MigrationName)

	if err := dropProjectionTrigger(ctx, ec, a.Table, a.Column, ec.MigrationName); err != nil {
		return err
	}

	referencingIndexes, err := indexesReferencingColumn(ctx, ec.Conn, a.Table, a.Column)
	if err != nil {
		return err
	}

	originalExists, err := columnExists(ctx, ec.Conn, a.Table, a.Column)
	if err != nil {
		return err
	}
	if originalExists {
		sql := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(a.Column))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
	}

	shadowStillShadow, err := columnExists(ctx, ec.Conn, a.Table, shadow)
	if err != nil {
		return err
	}
	if shadowStillShadow {
		sql := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(shadow), pq.QuoteIdentifier(final))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
	}

	if a.Changes.Nullable != nil && !*a.Changes.Nullable {
		constraint := a.notNullConstraintName(ec.MigrationName)
		sql := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(final))
		if _, err := ec.Conn.ExecContext(ctx, sql); err != nil {
			return err
		}
		drop := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(constraint))
		if _, err := ec.Conn.ExecContext(ctx, drop); err != nil {
			return err
		}
	}

	for _, idx := range referencingIndexes {
		if err := rebuildIndexUnderOriginalName(ctx, ec, a.Table, idx, a.Column, final); err != nil {
			return err
		}
	}

	return nil
}

// Abort implements step 8: drop the trigger and the shadow column. The
// original column, untouched throughout Begin, needs no repair.
func (a *AlterColumn) Abort(ctx context.Context, ec *ExecutionContext) error {
	if a.Changes.IsRenameOnly() || a.Changes.IsDefaultOnly() {
		return nil
	}

	if err := dropProjectionTrigger(ctx, ec, a.Table, a.Column, ec.MigrationName); err != nil {
		return err
	}

	shadow := TempColumnName(a.Column, ec.MigrationName)
	sql := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", pq.QuoteIdentifier(a.Table), pq.QuoteIdentifier(shadow))
	_, err := ec.Conn.ExecContext(ctx, sql)
	return err
}

func (a *AlterColumn) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	final := a.finalName()

	if a.Changes.IsRenameOnly() {
		d := &Describe{AffectedTable: a.Table}
		if final != a.Column {
			d.Renames = map[string]string{a.Column: final}
		}
		return d, nil
	}

	if a.Changes.IsDefaultOnly() {
		// No shadow column exists for a default-only change: the physical
		// column stays a.Column, only its projected default moves.
		return &Describe{
			AffectedTable: a.Table,
			AddsColumns: []LogicalColumn{{
				Name:     a.Column,
				Physical: a.Column,
				Default:  a.Changes.Default,
			}},
		}, nil
	}

	def := a.Changes.Default
	if def == nil {
		if t := current.GetTable(a.Table); t != nil {
			if c := t.GetColumn(a.Column); c != nil {
				def = c.Default
			}
		}
	}

	d := &Describe{
		AffectedTable: a.Table,
		AddsColumns: []LogicalColumn{{
			Name:     final,
			Physical: TempColumnName(a.Column, migrationName),
			Default:  def,
		}},
	}
	if final != a.Column {
		d.Renames = map[string]string{a.Column: final}
	}
	return d, nil
}

// CompleteAutomatically is false for any alteration with a destructive
// complete step. A pure rename or default-only change has none, so both
// report true.
func (a *AlterColumn) CompleteAutomatically() bool {
	return a.Changes.IsRenameOnly() || a.Changes.IsDefaultOnly()
}

func (a *AlterColumn) effectiveUp() string {
	if a.Up != nil {
		return *a.Up
	}
	return pq.QuoteIdentifier(a.Column)
}

// effectiveDown defaults to the column's own bare identifier, the same
// placeholder effectiveUp uses: the trigger function binds that identifier
// to the shadow column's value for the down direction, so an identity
// projection falls out without the caller writing one explicitly.
func (a *AlterColumn) effectiveDown() string {
	if a.Down != nil {
		return *a.Down
	}
	return pq.QuoteIdentifier(a.Column)
}

// wordBoundary matches a bare identifier occurrence of name, used to
// textually compose successive up/down expressions.
func wordBoundary(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// composeUp folds a newly declared up expression on top of the composed
// expression from earlier AlterColumns on the same column within one
// migration, so that up = up_n(up_{n-1}(...up_1(col))).
func composeUp(existing, column, next string) string {
	if existing == "" {
		return next
	}
	if next == "" {
		return existing
	}
	return wordBoundary(column).ReplaceAllString(next, "("+existing+")")
}

// composeDown is composeUp's mirror: down = down_1(down_2(...down_n(col))),
// so each newly declared down expression is substituted into the innermost
// remaining reference of the existing composed expression.
func composeDown(existing, column, next string) string {
	if existing == "" {
		return next
	}
	if next == "" {
		return existing
	}
	return wordBoundary(column).ReplaceAllString(existing, "("+next+")")
}
