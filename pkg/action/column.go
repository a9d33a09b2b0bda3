// SPDX-License-Identifier: Apache-2.0

package action

import "fmt"

// Column is the declarative description of a column, as supplied to
// CreateTable and AddColumn.
type Column struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default,omitempty"`
	Generated    *string `json:"generated,omitempty"`
	Comment      *string `json:"comment,omitempty"`
	Unique       bool    `json:"unique,omitempty"`
	PrimaryKey   bool    `json:"pk,omitempty"`
	References   *Reference `json:"references,omitempty"`
}

// Reference describes a foreign key on a column.
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// NewColumn returns a Column with the required fields set and Nullable
// defaulting to true, matching the data model's stated default.
func NewColumn(name, dataType string) Column {
	return Column{Name: name, Type: dataType, Nullable: true}
}

// WithNotNull marks the column as NOT NULL.
func (c Column) WithNotNull() Column {
	c.Nullable = false
	return c
}

// WithDefault sets the column's DEFAULT expression.
func (c Column) WithDefault(expr string) Column {
	c.Default = &expr
	return c
}

// WithPrimaryKey marks the column as (part of) the table's primary key.
func (c Column) WithPrimaryKey() Column {
	c.PrimaryKey = true
	return c
}

// Validate checks a column description against the invariants in the data
// model: a legal identifier, and non-nullable columns without a default
// must be backfillable (checked by the caller, which has the up
// expression context AddColumn carries).
func (c Column) Validate() error {
	if err := ValidateIdentifier(c.Name); err != nil {
		return err
	}
	if c.Type == "" {
		return &FieldRequiredError{Name: "type"}
	}
	return nil
}

// ColumnDefinitionSQL renders the column as a column definition fragment
// suitable for use in CREATE TABLE / ALTER TABLE ... ADD COLUMN.
func (c Column) ColumnDefinitionSQL(quotedName string) string {
	sql := fmt.Sprintf("%s %s", quotedName, c.Type)
	if !c.Nullable {
		sql += " NOT NULL"
	}
	if c.Default != nil {
		sql += fmt.Sprintf(" DEFAULT %s", *c.Default)
	}
	if c.Generated != nil {
		sql += fmt.Sprintf(" GENERATED ALWAYS AS (%s) STORED", *c.Generated)
	}
	return sql
}

// ColumnChanges is the sparse overlay AlterColumn applies to a column's
// current description. Every field is optional; at least one must be set.
type ColumnChanges struct {
	Name     *string `json:"name,omitempty"`
	Type     *string `json:"type,omitempty"`
	Nullable *bool   `json:"nullable,omitempty"`
	Default  *string `json:"default,omitempty"`
}

// IsEmpty reports whether no field of the overlay is populated.
func (c ColumnChanges) IsEmpty() bool {
	return c.Name == nil && c.Type == nil && c.Nullable == nil && c.Default == nil
}

// IsRenameOnly reports whether Name is the only populated field.
func (c ColumnChanges) IsRenameOnly() bool {
	return c.Name != nil && c.Type == nil && c.Nullable == nil && c.Default == nil
}

// IsDefaultOnly reports whether Default is the only populated field.
func (c ColumnChanges) IsDefaultOnly() bool {
	return c.Default != nil && c.Name == nil && c.Type == nil && c.Nullable == nil
}

// RequiresUpDown reports whether this overlay changes the column's stored
// representation (type or nullability) and therefore requires bidirectional
// up/down expressions. A default-only change does not: it only affects
// which value new inserts pick up, not how existing values are read, so an
// identity projection suffices when up/down are omitted.
func (c ColumnChanges) RequiresUpDown() bool {
	return c.Type != nil || c.Nullable != nil
}
