// SPDX-License-Identifier: Apache-2.0

package action

// Migration is an ordered, uniquely named unit of schema change. Migrations
// are content-addressable by Name: renaming or reordering one is treated by
// the planner as introducing a new, conflicting migration.
type Migration struct {
	Name        string
	Description *string
	Actions     []Action
}

// NewMigration returns a migration with no actions yet attached.
func NewMigration(name string, description *string) *Migration {
	return &Migration{Name: name, Description: description}
}

// WithAction appends an action to the migration and returns it, for
// chaining.
func (m *Migration) WithAction(a Action) *Migration {
	m.Actions = append(m.Actions, a)
	return m
}

// Validate checks the migration's own invariants (non-empty name, legal
// identifier, at least one action) without yet validating the actions
// themselves against a schema.
func (m *Migration) Validate() error {
	if err := ValidateIdentifier(m.Name); err != nil {
		return err
	}
	if len(m.Actions) == 0 {
		return &FieldRequiredError{Name: "actions"}
	}
	return nil
}

// NamespaceName returns the schema namespace the projector creates for this
// migration.
func (m *Migration) NamespaceName() string {
	return "migration_" + m.Name
}

// Compact folds successive AlterColumns targeting the same {table, column}
// within this migration into a single AlterColumn, composing their up/down
// expressions and overlaying their ColumnChanges in declared order. After
// Compact, at most one AlterColumn remains per altered column, matching the
// "one shadow column, one trigger pair" rule for a chain of alterations.
// Idempotent: compacting an already-compacted migration is a no-op.
func (m *Migration) Compact() {
	type key struct{ table, column string }
	first := make(map[key]*AlterColumn)
	order := make([]Action, 0, len(m.Actions))

	for _, act := range m.Actions {
		ac, ok := act.(*AlterColumn)
		if !ok {
			order = append(order, act)
			continue
		}

		k := key{ac.Table, ac.Column}
		existing, seen := first[k]
		if !seen {
			merged := *ac
			first[k] = &merged
			order = append(order, &merged)
			continue
		}

		mergeAlterColumn(existing, ac)
	}

	m.Actions = order
}

// mergeAlterColumn folds next onto existing in place, composing up/down
// expressions and overlaying ColumnChanges fields (next wins on conflict,
// since it was declared later).
func mergeAlterColumn(existing, next *AlterColumn) {
	existingUp := ""
	if existing.Up != nil {
		existingUp = *existing.Up
	}
	existingDown := ""
	if existing.Down != nil {
		existingDown = *existing.Down
	}
	nextUp := ""
	if next.Up != nil {
		nextUp = *next.Up
	}
	nextDown := ""
	if next.Down != nil {
		nextDown = *next.Down
	}

	if nextUp != "" || existingUp != "" {
		composed := composeUp(existingUp, existing.Column, nextUp)
		existing.Up = &composed
	}
	if nextDown != "" || existingDown != "" {
		composed := composeDown(existingDown, existing.Column, nextDown)
		existing.Down = &composed
	}

	if next.Changes.Name != nil {
		existing.Changes.Name = next.Changes.Name
	}
	if next.Changes.Type != nil {
		existing.Changes.Type = next.Changes.Type
	}
	if next.Changes.Nullable != nil {
		existing.Changes.Nullable = next.Changes.Nullable
	}
	if next.Changes.Default != nil {
		existing.Changes.Default = next.Changes.Default
	}
}
