// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"fmt"

	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/schema"
	"github.com/db-tools-oss/reshape/pkg/state"
)

// encodeMigration renders a migration into its persisted form.
func encodeMigration(m *action.Migration) (state.StoredMigration, error) {
	actions := make([]json.RawMessage, 0, len(m.Actions))
	for _, a := range m.Actions {
		body, err := action.MarshalAction(a)
		if err != nil {
			return state.StoredMigration{}, err
		}
		actions = append(actions, body)
	}
	rawActions, err := json.Marshal(actions)
	if err != nil {
		return state.StoredMigration{}, err
	}
	return state.StoredMigration{Name: m.Name, Description: m.Description, Actions: rawActions}, nil
}

// decodeMigration reverses encodeMigration, used when replaying persisted
// history (e.g. resuming complete/abort after a restart).
func decodeMigration(sm state.StoredMigration) (*action.Migration, error) {
	var rawActions []json.RawMessage
	if err := json.Unmarshal(sm.Actions, &rawActions); err != nil {
		return nil, fmt.Errorf("decoding migration %q: %w", sm.Name, err)
	}
	m := &action.Migration{Name: sm.Name, Description: sm.Description}
	for _, raw := range rawActions {
		a, err := action.UnmarshalAction(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding migration %q: %w", sm.Name, err)
		}
		m.Actions = append(m.Actions, a)
	}
	return m, nil
}

// buildSchema replays Describe() across migrations[0:upTo] (inclusive) into
// a *schema.Schema. It never reads the live database catalog: the logical
// model is entirely a function of migration history.
func buildSchema(migrations []*action.Migration, upTo int) (*schema.Schema, error) {
	sch := schema.New()
	for i := 0; i <= upTo && i < len(migrations); i++ {
		m := migrations[i]
		for _, a := range m.Actions {
			d, err := a.Describe(sch, m.Name)
			if err != nil {
				return nil, fmt.Errorf("migration %q: describing action: %w", m.Name, err)
			}
			applyDescribe(sch, d)
		}
	}
	return sch, nil
}

func applyDescribe(sch *schema.Schema, d *action.Describe) {
	if d.TableCreated {
		t := &schema.Table{
			Name:       d.AffectedTable,
			Columns:    make(map[string]*schema.Column),
			PrimaryKey: d.PrimaryKey,
		}
		sch.AddTable(t)
	}

	if d.TableRemoved {
		sch.RemoveTable(d.AffectedTable)
		return
	}

	tableName := d.AffectedTable
	if d.NewTableName != "" && d.NewTableName != d.AffectedTable {
		sch.RenameTable(d.AffectedTable, d.NewTableName)
		tableName = d.NewTableName
	}

	t := sch.GetTable(tableName)
	if t == nil {
		return
	}

	for oldName, newName := range d.Renames {
		if c, ok := t.Columns[oldName]; ok {
			delete(t.Columns, oldName)
			c.Name = newName
			t.Columns[newName] = c
		}
	}

	for _, removed := range d.RemovesColumns {
		delete(t.Columns, removed)
	}

	for _, add := range d.AddsColumns {
		t.Columns[add.Name] = &schema.Column{Name: add.Name, Physical: add.Physical, Default: add.Default}
	}
}
