// SPDX-License-Identifier: Apache-2.0

package action

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// kind is the discriminant tag a serialized action is keyed under.
type kind string

const (
	kindCreateTable  kind = "create_table"
	kindAddColumn    kind = "add_column"
	kindRemoveColumn kind = "remove_column"
	kindAlterColumn  kind = "alter_column"
	kindRenameTable  kind = "rename_table"
	kindRemoveTable  kind = "remove_table"
	kindAddIndex     kind = "add_index"
	kindRemoveIndex  kind = "remove_index"
	kindCustom       kind = "custom"
)

func newAction(k kind) (Action, error) {
	switch k {
	case kindCreateTable:
		return &CreateTable{}, nil
	case kindAddColumn:
		return &AddColumn{}, nil
	case kindRemoveColumn:
		return &RemoveColumn{}, nil
	case kindAlterColumn:
		return &AlterColumn{}, nil
	case kindRenameTable:
		return &RenameTable{}, nil
	case kindRemoveTable:
		return &RemoveTable{}, nil
	case kindAddIndex:
		return &AddIndex{}, nil
	case kindRemoveIndex:
		return &RemoveIndex{}, nil
	case kindCustom:
		return &Custom{}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", k)
	}
}

func kindOf(a Action) (kind, error) {
	switch a.(type) {
	case *CreateTable:
		return kindCreateTable, nil
	case *AddColumn:
		return kindAddColumn, nil
	case *RemoveColumn:
		return kindRemoveColumn, nil
	case *AlterColumn:
		return kindAlterColumn, nil
	case *RenameTable:
		return kindRenameTable, nil
	case *RemoveTable:
		return kindRemoveTable, nil
	case *AddIndex:
		return kindAddIndex, nil
	case *RemoveIndex:
		return kindRemoveIndex, nil
	case *Custom:
		return kindCustom, nil
	default:
		return "", fmt.Errorf("unregistered action type %T", a)
	}
}

// wrappedAction is the single-key-object wire representation of an action,
// e.g. {"alter_column": {...}}.
type wrappedAction map[kind]json.RawMessage

// MarshalAction renders a into its wrapped wire representation.
func MarshalAction(a Action) (json.RawMessage, error) {
	k, err := kindOf(a)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wrappedAction{k: body})
}

// UnmarshalAction parses a wrapped wire representation back into a concrete
// Action.
func UnmarshalAction(raw json.RawMessage) (Action, error) {
	var w wrappedAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if len(w) != 1 {
		return nil, fmt.Errorf("action object must have exactly one key, got %d", len(w))
	}
	for k, body := range w {
		a, err := newAction(k)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, a); err != nil {
			return nil, fmt.Errorf("decoding %s action: %w", k, err)
		}
		return a, nil
	}
	panic("unreachable")
}

// rawMigration is Migration's wire shape.
type rawMigration struct {
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Actions     []json.RawMessage `json:"actions"`
}

// MarshalJSON implements json.Marshaler, rendering each action in its
// single-key wrapped form.
func (m *Migration) MarshalJSON() ([]byte, error) {
	raw := rawMigration{Name: m.Name, Description: m.Description}
	for _, a := range m.Actions {
		body, err := MarshalAction(a)
		if err != nil {
			return nil, err
		}
		raw.Actions = append(raw.Actions, body)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Migration) UnmarshalJSON(data []byte) error {
	var raw rawMigration
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Description = raw.Description
	m.Actions = nil
	for _, body := range raw.Actions {
		a, err := UnmarshalAction(body)
		if err != nil {
			return fmt.Errorf("migration %q: %w", raw.Name, err)
		}
		m.Actions = append(m.Actions, a)
	}
	return nil
}

// ReadMigration parses a single migration from either JSON or YAML bytes.
// YAML files are converted to JSON first so that a single code path (and a
// single set of struct tags) serves both formats, matching how on-disk
// migration files are authored.
func ReadMigration(data []byte) (*Migration, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting migration to JSON: %w", err)
	}

	m := &Migration{}
	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, err
	}
	return m, nil
}
