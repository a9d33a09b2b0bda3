// SPDX-License-Identifier: Apache-2.0

// Package plan derives, from a caller-supplied migration list and the
// engine's persisted history, which migrations are pending and whether the
// lifecycle controller may complete them without an explicit operator
// confirmation.
package plan

import (
	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/state"
)

// Plan is the outcome of comparing a caller's migration list against
// persisted history.
type Plan struct {
	// Pending are the migrations, in order, that have not yet begun.
	Pending []*action.Migration

	// StartIndex is the index, within the caller's list, of the first
	// pending migration.
	StartIndex int

	// AutoComplete is true when every action in every pending migration
	// reports CompleteAutomatically, letting migrate() call complete()
	// transparently.
	AutoComplete bool
}

// Build compares caller against the persisted state and derives a Plan, or
// a *MigrationHistoryConflictError if caller disagrees with persisted
// history on any already-seen migration name.
func Build(caller []*action.Migration, persisted *state.PersistedState) (*Plan, error) {
	seen := persisted.Migrations
	if len(caller) < len(seen) {
		return nil, &MigrationHistoryConflictError{
			Reason: "supplied migration list is shorter than persisted history",
		}
	}

	for i, m := range seen {
		if caller[i].Name != m.Name {
			return nil, &MigrationHistoryConflictError{
				Index:    i,
				Expected: m.Name,
				Got:      caller[i].Name,
			}
		}
	}

	startIndex := persisted.CurrentMigration + 1
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex > len(caller) {
		startIndex = len(caller)
	}

	pending := caller[startIndex:]

	autoComplete := true
	for _, m := range pending {
		for _, a := range m.Actions {
			if !a.CompleteAutomatically() {
				autoComplete = false
				break
			}
		}
		if !autoComplete {
			break
		}
	}

	return &Plan{Pending: pending, StartIndex: startIndex, AutoComplete: autoComplete}, nil
}
