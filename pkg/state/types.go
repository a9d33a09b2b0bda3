// SPDX-License-Identifier: Apache-2.0

package state

import "encoding/json"

// schemaVersion is the version of the state store's own row layout, not of
// any migration. Bumped when the persisted JSON shape changes
// incompatibly.
const schemaVersion = 1

// StoredMigration is the persisted form of a migration: its name and
// description for conflict detection, plus the canonical serialization of
// its actions for abort/complete replay across process restarts.
type StoredMigration struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Actions     json.RawMessage `json:"actions"`
}

// PersistedState is the singleton row's deserialized content.
type PersistedState struct {
	Version          int
	Status           Status
	CurrentMigration int // index into Migrations of the last migration to begin, -1 if none.

	// LastCompletedMigration is the index of the last migration whose
	// Complete hooks have run; migrations in (LastCompletedMigration,
	// CurrentMigration] are in progress. -1 if none have completed.
	LastCompletedMigration int

	// EngineVersion is the engine binary's own version string at the time
	// the reserved schema was first initialized. It never changes after
	// Init, and is compared against the running binary's version by
	// VersionCompatibility to warn about a downgrade.
	EngineVersion string

	Migrations []StoredMigration
}

// NewPersistedState returns the zero state a freshly initialized store
// starts from, stamped with the engine binary's version.
func NewPersistedState(engineVersion string) *PersistedState {
	return &PersistedState{
		Version:                schemaVersion,
		Status:                 StatusIdle,
		CurrentMigration:       -1,
		LastCompletedMigration: -1,
		EngineVersion:          engineVersion,
	}
}
