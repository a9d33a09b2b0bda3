// SPDX-License-Identifier: Apache-2.0

// Package schema tracks the logical shape of a table as migrations are
// applied to it: which physical column backs each logical column, and what
// default expression (if any) the current migration projects for it.
//
// A Schema is never read from the database. It is built by replaying the
// Describe() output of every action in every completed or in-progress
// migration, in order, starting from an empty schema. This keeps projection
// decisions (which physical column a logical name maps to) independent of
// the database's own catalog, which only ever reflects the latest physical
// state.
package schema

// Column is a logical column exposed by a migration's view of a table.
type Column struct {
	// Name is the logical column name as seen by a session connected to
	// this migration's namespace.
	Name string

	// Physical is the name of the column in the underlying physical table
	// that backs this logical column. It differs from Name while a
	// shadow column is in flight for an in-progress alteration, and after
	// a rename-only alteration, which relabels the logical column without
	// renaming the physical one.
	Physical string

	// Default, when non-nil, is the expression the migration's view
	// projects as the logical column's default. A nil Default means the
	// view inherits the physical column's own default, if any.
	Default *string
}

// Table is the logical shape of a physical table as of some migration.
type Table struct {
	// Name is the physical table name. Renaming a table changes this
	// field without affecting column physical names.
	Name string

	Columns map[string]*Column

	// PrimaryKey holds the physical column names making up the table's
	// primary key, used by the projector to target UPDATE/DELETE
	// statements issued through a migration's views.
	PrimaryKey []string

	// OldName records the table's name immediately prior to the most
	// recent RenameTable affecting it, empty otherwise.
	OldName string
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	clone := &Table{
		Name:       t.Name,
		OldName:    t.OldName,
		PrimaryKey: append([]string(nil), t.PrimaryKey...),
		Columns:    make(map[string]*Column, len(t.Columns)),
	}
	for name, col := range t.Columns {
		c := *col
		clone.Columns[name] = &c
	}
	return clone
}

// GetColumn looks up a logical column by name.
func (t *Table) GetColumn(name string) *Column {
	return t.Columns[name]
}

// PhysicalColumns returns the set of physical column names currently
// referenced by the table's logical columns.
func (t *Table) PhysicalColumns() []string {
	seen := make(map[string]bool, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !seen[c.Physical] {
			seen[c.Physical] = true
			cols = append(cols, c.Physical)
		}
	}
	return cols
}

// Schema is the logical shape of every table as of a single migration.
type Schema struct {
	Tables map[string]*Table
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{Tables: make(map[string]*Table)}
}

// Clone returns a deep copy of s, suitable for mutating into the schema of
// the next migration in a chain without disturbing s itself.
func (s *Schema) Clone() *Schema {
	clone := New()
	for name, t := range s.Tables {
		clone.Tables[name] = t.Clone()
	}
	return clone
}

// GetTable looks up a table by its current logical name.
func (s *Schema) GetTable(name string) *Table {
	return s.Tables[name]
}

// AddTable registers a new table.
func (s *Schema) AddTable(t *Table) {
	s.Tables[t.Name] = t
}

// RemoveTable removes a table from the schema.
func (s *Schema) RemoveTable(name string) {
	delete(s.Tables, name)
}

// RenameTable renames a table in place, preserving its columns.
func (s *Schema) RenameTable(oldName, newName string) {
	t, ok := s.Tables[oldName]
	if !ok {
		return
	}
	delete(s.Tables, oldName)
	t.OldName = oldName
	t.Name = newName
	s.Tables[newName] = t
}
