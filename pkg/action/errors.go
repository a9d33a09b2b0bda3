// SPDX-License-Identifier: Apache-2.0

package action

import "fmt"

// FieldRequiredError reports that a required field on an action or column
// was left empty.
type FieldRequiredError struct {
	Name string
}

func (e *FieldRequiredError) Error() string {
	return fmt.Sprintf("field %q is required", e.Name)
}

// InvalidIdentifierError reports that a name fails the identifier grammar.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q", e.Name)
}

// TableDoesNotExistError reports a reference to a table not present in the
// accumulated schema.
type TableDoesNotExistError struct {
	Name string
}

func (e *TableDoesNotExistError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Name)
}

// TableAlreadyExistsError reports an attempt to create a table that already
// exists in the accumulated schema.
type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

// ColumnDoesNotExistError reports a reference to a column not present on
// its table.
type ColumnDoesNotExistError struct {
	Table  string
	Column string
}

func (e *ColumnDoesNotExistError) Error() string {
	return fmt.Sprintf("column %q does not exist on table %q", e.Column, e.Table)
}

// ColumnAlreadyExistsError reports an attempt to add a column that already
// exists on its table.
type ColumnAlreadyExistsError struct {
	Table  string
	Column string
}

func (e *ColumnAlreadyExistsError) Error() string {
	return fmt.Sprintf("column %q already exists on table %q", e.Column, e.Table)
}

// NoChangesError reports an AlterColumn whose ColumnChanges is entirely
// empty.
type NoChangesError struct {
	Table  string
	Column string
}

func (e *NoChangesError) Error() string {
	return fmt.Sprintf("alter column %q.%q specifies no changes", e.Table, e.Column)
}

// MissingUpDownError reports a ColumnChanges that requires up/down
// expressions but is missing one or both.
type MissingUpDownError struct {
	Table  string
	Column string
}

func (e *MissingUpDownError) Error() string {
	return fmt.Sprintf("alter column %q.%q changes anything beyond name and requires both up and down expressions", e.Table, e.Column)
}

// NotNullViolationError reports a column being set NOT NULL without an up
// expression to backfill existing NULLs.
type NotNullViolationError struct {
	Table  string
	Column string
}

func (e *NotNullViolationError) Error() string {
	return fmt.Sprintf("column %q.%q cannot be made NOT NULL without an up expression to backfill existing rows", e.Table, e.Column)
}

// ColumnIsNotNullableError reports an AddColumn that is non-nullable,
// lacks a default, and targets a table that may already hold rows.
type ColumnIsNotNullableError struct {
	Table  string
	Column string
}

func (e *ColumnIsNotNullableError) Error() string {
	return fmt.Sprintf("column %q.%q is not nullable and has no default; an existing table cannot accept such a column without an up expression", e.Table, e.Column)
}
